// Package seed provides helpers to create demo and test data for the
// application database. Intended for development only.
package seed

import (
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"

	"tapcard/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

// Options controls seeding behavior.
type Options struct {
	// Users is the number of fake profiles to generate.
	Users int
	// ConnectRatio is the fraction of user pairs that end up connected.
	ConnectRatio float64
	// PendingRatio is the fraction of user pairs left with a pending request.
	PendingRatio float64
	// Password is assigned to every generated profile.
	Password string
}

// Seeder populates the database with generated or fixture-defined data.
type Seeder struct {
	db   *gorm.DB
	opts Options
	rng  *rand.Rand
	// bcrypt is slow; every seeded profile shares one hash.
	passwordHash string
}

// NewSeeder creates a Seeder bound to the provided Gorm DB.
func NewSeeder(db *gorm.DB, opts Options) (*Seeder, error) {
	if opts.Password == "" {
		opts.Password = "password123"
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(opts.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing seed password: %w", err)
	}
	gofakeit.Seed(time.Now().UnixNano())
	return &Seeder{
		db:           db,
		opts:         opts,
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())),
		passwordHash: string(hash),
	}, nil
}

// ClearAll deletes every row from the managed tables.
func (s *Seeder) ClearAll() error {
	for _, table := range []string{"notifications", "connections", "connection_requests", "profiles"} {
		if err := s.db.Exec("DELETE FROM " + table).Error; err != nil {
			return fmt.Errorf("clearing %s: %w", table, err)
		}
	}
	log.Println("Cleared existing data")
	return nil
}

// SeedProfiles generates n fake profiles.
func (s *Seeder) SeedProfiles(n int) ([]models.Profile, error) {
	profiles := make([]models.Profile, 0, n)
	for i := 0; i < n; i++ {
		p := models.Profile{
			FullName:     gofakeit.Name(),
			Email:        models.NormalizeEmail(fmt.Sprintf("%s.%d@%s", gofakeit.Username(), gofakeit.Number(100, 999), gofakeit.DomainName())),
			PasswordHash: s.passwordHash,
			AvatarURL:    fmt.Sprintf("https://i.pravatar.cc/150?u=%s", gofakeit.UUID()),
			JobTitle:     gofakeit.JobTitle(),
			Company:      gofakeit.Company(),
			Phone:        gofakeit.Phone(),
		}
		if err := s.db.Create(&p).Error; err != nil {
			return nil, fmt.Errorf("creating profile %d: %w", i, err)
		}
		profiles = append(profiles, p)
	}
	log.Printf("Created %d profiles", len(profiles))
	return profiles, nil
}

// SeedRelationships walks every unordered pair and randomly connects some,
// leaves others with a pending request, and skips the rest.
func (s *Seeder) SeedRelationships(profiles []models.Profile) error {
	var connected, pending int
	for i := 0; i < len(profiles); i++ {
		for j := i + 1; j < len(profiles); j++ {
			roll := s.rng.Float64()
			switch {
			case roll < s.opts.ConnectRatio:
				if err := s.connectPair(&profiles[i], &profiles[j]); err != nil {
					return err
				}
				connected++
			case roll < s.opts.ConnectRatio+s.opts.PendingRatio:
				if err := s.pendingPair(&profiles[i], &profiles[j]); err != nil {
					return err
				}
				pending++
			}
		}
	}
	log.Printf("Created %d connected pairs, %d pending requests", connected, pending)
	return nil
}

// connectPair writes the full accepted state: one accepted request and a
// connection row on each side, the same rows acceptance would produce.
func (s *Seeder) connectPair(a, b *models.Profile) error {
	request := &models.ConnectionRequest{
		RequesterID: a.ID,
		TargetID:    b.ID,
		Status:      models.RequestStatusAccepted,
	}
	if err := s.db.Create(request).Error; err != nil {
		return fmt.Errorf("creating accepted request: %w", err)
	}
	if err := s.db.Create(models.NewConnectionFromProfile(a.ID, b)).Error; err != nil {
		return fmt.Errorf("creating connection row: %w", err)
	}
	if err := s.db.Create(models.NewConnectionFromProfile(b.ID, a)).Error; err != nil {
		return fmt.Errorf("creating reverse connection row: %w", err)
	}
	return nil
}

func (s *Seeder) pendingPair(a, b *models.Profile) error {
	requester, target := a, b
	if s.rng.Intn(2) == 0 {
		requester, target = b, a
	}
	request := &models.ConnectionRequest{
		RequesterID: requester.ID,
		TargetID:    target.ID,
		Status:      models.RequestStatusPending,
	}
	if err := s.db.Create(request).Error; err != nil {
		return fmt.Errorf("creating pending request: %w", err)
	}
	note := &models.Notification{
		UserID:  target.ID,
		Kind:    models.NotificationKindNewConnection,
		Title:   "New connection request",
		Message: fmt.Sprintf("%s wants to connect with you", requester.FullName),
	}
	if err := s.db.Create(note).Error; err != nil {
		return fmt.Errorf("creating request notification: %w", err)
	}
	return nil
}

// Fixture is a YAML-defined dataset for reproducible demo environments.
type Fixture struct {
	Profiles []FixtureProfile `yaml:"profiles"`
	Pairs    []FixturePair    `yaml:"pairs"`
}

// FixtureProfile describes one profile to create.
type FixtureProfile struct {
	FullName string `yaml:"full_name"`
	Email    string `yaml:"email"`
	JobTitle string `yaml:"job_title"`
	Company  string `yaml:"company"`
	Phone    string `yaml:"phone"`
}

// FixturePair describes the relationship between two fixture profiles,
// referenced by email. State is "connected", "pending", or "declined".
type FixturePair struct {
	From  string `yaml:"from"`
	To    string `yaml:"to"`
	State string `yaml:"state"`
}

// LoadFixture parses a fixture file.
func LoadFixture(path string) (*Fixture, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading fixture: %w", err)
	}
	var fx Fixture
	if err := yaml.Unmarshal(raw, &fx); err != nil {
		return nil, fmt.Errorf("parsing fixture: %w", err)
	}
	return &fx, nil
}

// ApplyFixture creates the fixture's profiles and pair states.
func (s *Seeder) ApplyFixture(fx *Fixture) error {
	byEmail := make(map[string]*models.Profile, len(fx.Profiles))
	for _, fp := range fx.Profiles {
		p := models.Profile{
			FullName:     fp.FullName,
			Email:        models.NormalizeEmail(fp.Email),
			PasswordHash: s.passwordHash,
			JobTitle:     fp.JobTitle,
			Company:      fp.Company,
			Phone:        fp.Phone,
		}
		if err := s.db.Create(&p).Error; err != nil {
			return fmt.Errorf("creating fixture profile %q: %w", fp.Email, err)
		}
		byEmail[p.Email] = &p
	}

	for _, pair := range fx.Pairs {
		from, ok := byEmail[models.NormalizeEmail(pair.From)]
		if !ok {
			return fmt.Errorf("fixture pair references unknown profile %q", pair.From)
		}
		to, ok := byEmail[models.NormalizeEmail(pair.To)]
		if !ok {
			return fmt.Errorf("fixture pair references unknown profile %q", pair.To)
		}

		switch pair.State {
		case "connected":
			if err := s.connectPair(from, to); err != nil {
				return err
			}
		case "pending":
			request := &models.ConnectionRequest{
				RequesterID: from.ID,
				TargetID:    to.ID,
				Status:      models.RequestStatusPending,
			}
			if err := s.db.Create(request).Error; err != nil {
				return fmt.Errorf("creating fixture request: %w", err)
			}
		case "declined":
			request := &models.ConnectionRequest{
				RequesterID: from.ID,
				TargetID:    to.ID,
				Status:      models.RequestStatusDeclined,
			}
			if err := s.db.Create(request).Error; err != nil {
				return fmt.Errorf("creating fixture request: %w", err)
			}
		default:
			return fmt.Errorf("fixture pair %q -> %q has unknown state %q", pair.From, pair.To, pair.State)
		}
	}

	log.Printf("Applied fixture: %d profiles, %d pairs", len(fx.Profiles), len(fx.Pairs))
	return nil
}
