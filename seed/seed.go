// Package seed fills an empty database with believable demo data.
package seed

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/cppla/pacts/models"
)

// Summary counts what Run created.
type Summary struct {
	Users    int `json:"users"`
	Pacts    int `json:"pacts"`
	CheckIns int `json:"check_ins"`
	Kudos    int `json:"kudos"`
}

type pactTemplate struct {
	title string
	tags  []string
}

var pactTemplates = []pactTemplate{
	{"Learn Go Concurrency Patterns In-Depth", []string{"#learning", "#golang", "#concurrency"}},
	{"Build a Full-Stack Markdown Blog", []string{"#project", "#fullstack", "#typescript"}},
	{"Master Advanced SQL Joins and Window Functions", []string{"#database", "#sql", "#career"}},
	{"Make a Meaningful Contribution to an Open Source Project", []string{"#opensource", "#community", "#github"}},
	{"Complete a Full Course on System Design Fundamentals", []string{"#learning", "#systemdesign", "#interviewprep"}},
	{"Launch a SaaS MVP for Task Management", []string{"#startup", "#saas", "#product"}},
	{"Write and Publish 5 Technical Articles", []string{"#writing", "#blogging", "#career"}},
	{"Refactor the Authentication Module in a Legacy Project", []string{"#work", "#refactoring", "#techdebt"}},
	{"Get AWS Certified as a Solutions Architect", []string{"#aws", "#certification", "#cloud"}},
	{"Create a WebGL-Powered 3D Portfolio", []string{"#frontend", "#webgl", "#portfolio"}},
}

var checkInMessages = map[models.CheckInStatus][]string{
	models.StatusOnTrack: {
		"Making steady progress this week. The core logic is implemented.",
		"Feeling productive. Just integrated the third-party API.",
		"Everything is going according to plan. On schedule for the deadline.",
		"Pushed a new commit with the latest updates. The feature is taking shape.",
		"Solved a tricky bug today. Moving forward again.",
	},
	models.StatusMilestone: {
		"Huge milestone reached! Authentication and user profiles are fully functional.",
		"Deployed the first alpha version. It's live!",
		"Finished the data visualization component. Tough but rewarding.",
		"Officially halfway through the course.",
		"The MVP is feature-complete. Testing and bug fixes next.",
	},
	models.StatusBlocked: {
		"Stuck on a state management issue. More complex than I thought.",
		"Blocked by a rate limit on an external API. Waiting on their support team.",
		"Build configuration problems. The build keeps failing.",
		"Motivation took a dip this week. Taking a short break to refocus.",
		"The library docs are unclear, which is slowing me down.",
	},
}

var (
	firstNames = []string{"Ava", "Noah", "Mia", "Liam", "Zara", "Omar", "Lena", "Kenji", "Priya", "Mateo", "Sofia", "Elias", "Nora", "Tariq", "Ines", "Hugo", "Maya"}
	lastNames  = []string{"Khan", "Silva", "Novak", "Okafor", "Tanaka", "Rossi", "Haddad", "Larsen", "Moreau", "Reyes", "Ivanova", "Schmidt"}
	statuses   = []models.CheckInStatus{models.StatusOnTrack, models.StatusMilestone, models.StatusBlocked}
)

const (
	userCount          = 15
	completedChance    = 0.2
	imageChance        = 0.2
	maxCheckInsPerPact = 5
	maxKudosPerCheckIn = 5
)

// Run clears every pact table and writes fresh demo data in one transaction.
func Run(ctx context.Context, db *gorm.DB, rng *rand.Rand, log *zap.Logger) (Summary, error) {
	if log == nil {
		log = zap.NewNop()
	}
	var sum Summary
	now := time.Now()

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		log.Info("clearing old data")
		all := tx.Session(&gorm.Session{AllowGlobalUpdate: true})
		for _, m := range []any{&models.Kudo{}, &models.CheckIn{}, &models.Pact{}, &models.User{}} {
			if err := all.Delete(m).Error; err != nil {
				return fmt.Errorf("clear %T: %w", m, err)
			}
		}

		users := make([]models.User, 0, userCount)
		for i := 0; i < userCount; i++ {
			first := firstNames[rng.Intn(len(firstNames))]
			last := lastNames[rng.Intn(len(lastNames))]
			username := fmt.Sprintf("%s%s%d", strings.ToLower(first), strings.ToLower(last), i+1)
			u := models.User{
				Username:   &username,
				Name:       first + " " + last,
				Email:      username + "@example.com",
				Image:      fmt.Sprintf("https://i.pravatar.cc/150?u=%s", username),
				Provider:   "seed",
				ProviderID: username,
				CreatedAt:  now.AddDate(0, 0, -rng.Intn(365)-30),
			}
			if err := tx.Create(&u).Error; err != nil {
				return fmt.Errorf("create user: %w", err)
			}
			users = append(users, u)
		}
		sum.Users = len(users)
		log.Info("created users", zap.Int("count", sum.Users))

		var pacts []models.Pact
		for _, u := range users {
			n := 1 + rng.Intn(2)
			for _, idx := range rng.Perm(len(pactTemplates))[:n] {
				tpl := pactTemplates[idx]
				created := between(rng, u.CreatedAt, now)
				deadline := now.Add(time.Duration(1+rng.Intn(365)) * 24 * time.Hour)
				p := models.Pact{
					UserID:      u.ID,
					Title:       tpl.title,
					Description: fmt.Sprintf("Committing publicly to this so I actually follow through. Weekly check-ins until %s.", deadline.Format("January 2, 2006")),
					Deadline:    deadline,
					Tags:        strings.Join(tpl.tags, ","),
					IsCompleted: rng.Float64() < completedChance,
					CreatedAt:   created,
				}
				if p.IsCompleted {
					done := between(rng, created, now)
					p.CompletedAt = &done
				}
				if err := tx.Create(&p).Error; err != nil {
					return fmt.Errorf("create pact: %w", err)
				}
				pacts = append(pacts, p)
			}
		}
		sum.Pacts = len(pacts)
		log.Info("created pacts", zap.Int("count", sum.Pacts))

		var checkIns []models.CheckIn
		for _, p := range pacts {
			if p.IsCompleted {
				continue
			}
			n := 1 + rng.Intn(maxCheckInsPerPact)
			for i := 0; i < n; i++ {
				status := statuses[rng.Intn(len(statuses))]
				msgs := checkInMessages[status]
				ci := models.CheckIn{
					PactID:    p.ID,
					UserID:    p.UserID,
					Content:   msgs[rng.Intn(len(msgs))],
					Status:    status,
					CreatedAt: between(rng, p.CreatedAt, now),
				}
				if rng.Float64() < imageChance {
					ci.ImageURL = fmt.Sprintf("https://picsum.photos/seed/%d-%d/640/360", p.ID, i)
				}
				if err := tx.Create(&ci).Error; err != nil {
					return fmt.Errorf("create check-in: %w", err)
				}
				checkIns = append(checkIns, ci)
			}
		}
		sum.CheckIns = len(checkIns)
		log.Info("created check-ins", zap.Int("count", sum.CheckIns))

		for _, ci := range checkIns {
			givers := rng.Perm(len(users))[:rng.Intn(maxKudosPerCheckIn+1)]
			for _, gi := range givers {
				giver := users[gi]
				if giver.ID == ci.UserID {
					continue
				}
				if err := tx.Create(&models.Kudo{UserID: giver.ID, CheckInID: ci.ID}).Error; err != nil {
					return fmt.Errorf("create kudo: %w", err)
				}
				sum.Kudos++
			}
		}
		log.Info("gave kudos", zap.Int("count", sum.Kudos))
		return nil
	})
	return sum, err
}

// between picks a uniformly random instant in [from, to]. from after to yields to.
func between(rng *rand.Rand, from, to time.Time) time.Time {
	span := to.Sub(from)
	if span <= 0 {
		return to
	}
	return from.Add(time.Duration(rng.Int63n(int64(span) + 1)))
}
