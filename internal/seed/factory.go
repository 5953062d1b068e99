package seed

import (
	"context"
	"fmt"
	"math/rand"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"shapeit/internal/models"
	"shapeit/internal/validation"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/gorm"
)

var loginUnsafe = regexp.MustCompile(`[^A-Za-z0-9]+`)

// Factory builds domain entities and persists them to the database.
// The same seed always produces the same data.
type Factory struct {
	db    *gorm.DB
	faker *gofakeit.Faker
	rng   *rand.Rand
	now   time.Time
	// counter keeps generated logins and emails unique within one run
	counter int
}

// NewFactory creates a Factory bound to db.
func NewFactory(db *gorm.DB, seed int64) *Factory {
	return &Factory{
		db:    db,
		faker: gofakeit.New(seed),
		rng:   rand.New(rand.NewSource(seed)),
		now:   time.Now(),
	}
}

// login derives a valid provider username from a fake one.
func (f *Factory) login() string {
	f.counter++
	base := loginUnsafe.ReplaceAllString(f.faker.Username(), "")
	if len(base) > 30 {
		base = base[:30]
	}
	login := fmt.Sprintf("%s%d", base, f.counter)
	if validation.GitHubUsername(login) != nil {
		login = fmt.Sprintf("user%d", f.counter)
	}
	return login
}

// CreateUser constructs and persists a sample user with a backfilled username.
func (f *Factory) CreateUser(ctx context.Context, overrides ...func(*models.User)) (*models.User, error) {
	login := f.login()
	user := &models.User{
		Name:              f.faker.Name(),
		Email:             strings.ToLower(login) + "@example.com",
		Image:             fmt.Sprintf("https://i.pravatar.cc/150?u=%s", f.faker.UUID()),
		GitHubUsername:    &login,
		ProviderAccountID: fmt.Sprintf("%d", 100000+f.counter),
	}
	for _, override := range overrides {
		override(user)
	}

	if err := f.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// BuildPost constructs an unsaved post by author dated within the last maxDays.
// About one post in four carries images.
func (f *Factory) BuildPost(author *models.User, maxDays int) *models.Post {
	if maxDays < 1 {
		maxDays = 1
	}
	content := f.faker.Sentence(f.rng.Intn(30) + 3)
	if utf8.RuneCountInString(content) > validation.MaxPostContentLength {
		content = string([]rune(content)[:validation.MaxPostContentLength])
	}

	post := &models.Post{
		UserID:    author.ID,
		Content:   content,
		Images:    []string{},
		CreatedAt: f.now.Add(-time.Duration(f.rng.Int63n(int64(maxDays) * int64(24*time.Hour)))),
	}
	if f.rng.Intn(4) == 0 {
		n := f.rng.Intn(validation.MaxPostImages) + 1
		for i := 0; i < n; i++ {
			post.Images = append(post.Images,
				fmt.Sprintf("https://picsum.photos/seed/%s/800/800", f.faker.UUID()))
		}
	}
	return post
}

// CreatePostsBatch persists posts in a single DB call.
func (f *Factory) CreatePostsBatch(ctx context.Context, posts []*models.Post) error {
	if len(posts) == 0 {
		return nil
	}
	return f.db.WithContext(ctx).CreateInBatches(&posts, 200).Error
}

// React gives each user at most one random shape per post, each with the given
// probability, and returns how many reactions were stored.
func (f *Factory) React(ctx context.Context, users []*models.User, posts []*models.Post, probability float64) (int, error) {
	reactions := make([]*models.Reaction, 0)
	for _, u := range users {
		for _, p := range posts {
			if f.rng.Float64() >= probability {
				continue
			}
			reactions = append(reactions, &models.Reaction{
				UserID: u.ID,
				PostID: p.ID,
				Shape:  models.Shapes[f.rng.Intn(len(models.Shapes))],
			})
		}
	}
	if len(reactions) == 0 {
		return 0, nil
	}
	if err := f.db.WithContext(ctx).CreateInBatches(&reactions, 500).Error; err != nil {
		return 0, err
	}
	return len(reactions), nil
}
