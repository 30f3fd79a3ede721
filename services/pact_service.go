package services

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/cppla/pacts/models"
	"github.com/cppla/pacts/utils"
)

const (
	minTitleLen       = 3
	maxTitleLen       = 100
	maxDescriptionLen = 1000
	maxContentLen     = 2000
	maxImageURLLen    = 512
	maxTags           = 10
	maxTagLen         = 32
)

// NewPact is the input for creating a pact. Deadline accepts RFC3339 or YYYY-MM-DD.
type NewPact struct {
	Title       string
	Description string
	Deadline    string
	Tags        []string
}

// NewCheckIn is the input for posting a progress update. Empty status means on_track.
type NewCheckIn struct {
	Content  string
	Status   string
	ImageURL string
}

// PactService handles pact and check-in writes.
type PactService struct {
	db    *gorm.DB
	cache *utils.Cache
	inv   Invalidator
	log   *zap.Logger
	now   func() time.Time
}

func NewPactService(db *gorm.DB, cache *utils.Cache, inv Invalidator, log *zap.Logger) *PactService {
	if inv == nil {
		inv = NopInvalidator{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &PactService{db: db, cache: cache, inv: inv, log: log, now: time.Now}
}

// CreatePact validates in and stores a new pact authored by who.
func (s *PactService) CreatePact(ctx context.Context, who *Identity, in NewPact) (*models.Pact, error) {
	if who == nil || who.UserID == 0 {
		return nil, ErrUnauthenticated
	}
	title := utils.PlainText(in.Title)
	if n := utf8.RuneCountInString(title); n < minTitleLen || n > maxTitleLen {
		return nil, invalid("title", "must be %d to %d characters", minTitleLen, maxTitleLen)
	}
	desc := utils.PlainText(in.Description)
	if utf8.RuneCountInString(desc) > maxDescriptionLen {
		return nil, invalid("description", "cannot exceed %d characters", maxDescriptionLen)
	}
	deadline, err := ParseDeadline(in.Deadline)
	if err != nil {
		return nil, invalid("deadline", "must be a date (YYYY-MM-DD or RFC3339)")
	}
	if !deadline.After(s.now()) {
		return nil, invalid("deadline", "must be in the future")
	}
	tags := NormalizeTags(in.Tags)
	if len(tags) > maxTags {
		return nil, invalid("tags", "at most %d tags", maxTags)
	}
	for _, t := range tags {
		if utf8.RuneCountInString(t) > maxTagLen {
			return nil, invalid("tags", "each tag at most %d characters", maxTagLen)
		}
	}

	pact := &models.Pact{
		UserID:      who.UserID,
		Title:       title,
		Description: desc,
		Deadline:    deadline,
		Tags:        strings.Join(tags, ","),
	}
	if err := s.db.WithContext(ctx).Create(pact).Error; err != nil {
		return nil, storageErr("create pact", err)
	}
	s.evictProfile(ctx, who.UserID)
	return pact, nil
}

// CompletePact marks a pact done. Only its author may do so; repeating is a no-op.
func (s *PactService) CompletePact(ctx context.Context, who *Identity, pactID uint) (*models.Pact, error) {
	if who == nil || who.UserID == 0 {
		return nil, ErrUnauthenticated
	}
	pact, err := s.findPact(ctx, pactID)
	if err != nil {
		return nil, err
	}
	if pact.UserID != who.UserID {
		return nil, ErrForbidden
	}
	if pact.IsCompleted {
		return pact, nil
	}
	now := s.now()
	err = s.db.WithContext(ctx).Model(pact).Updates(map[string]any{
		"is_completed": true,
		"completed_at": now,
	}).Error
	if err != nil {
		return nil, storageErr("complete pact", err)
	}
	pact.IsCompleted = true
	pact.CompletedAt = &now
	s.markStale(ctx, pact.ID)
	s.evictProfile(ctx, pact.UserID)
	return pact, nil
}

// CreateCheckIn posts a progress update on one of who's own pacts.
func (s *PactService) CreateCheckIn(ctx context.Context, who *Identity, pactID uint, in NewCheckIn) (*models.CheckIn, error) {
	if who == nil || who.UserID == 0 {
		return nil, ErrUnauthenticated
	}
	pact, err := s.findPact(ctx, pactID)
	if err != nil {
		return nil, err
	}
	if pact.UserID != who.UserID {
		return nil, ErrForbidden
	}

	content := strings.TrimSpace(utils.Sanitize(in.Content))
	if content == "" {
		return nil, invalid("content", "cannot be empty")
	}
	if utf8.RuneCountInString(content) > maxContentLen {
		return nil, invalid("content", "cannot exceed %d characters", maxContentLen)
	}
	status := models.StatusOnTrack
	if in.Status != "" {
		status = models.CheckInStatus(strings.ToLower(strings.TrimSpace(in.Status)))
		if !status.Valid() {
			return nil, invalid("status", "must be one of on_track, milestone, blocked")
		}
	}
	imageURL := strings.TrimSpace(in.ImageURL)
	if imageURL != "" && !validImageURL(imageURL) {
		return nil, invalid("image_url", "must be an http(s) URL up to %d characters", maxImageURLLen)
	}

	ci := &models.CheckIn{
		PactID:   pact.ID,
		UserID:   who.UserID,
		Content:  content,
		Status:   status,
		ImageURL: imageURL,
	}
	if err := s.db.WithContext(ctx).Create(ci).Error; err != nil {
		return nil, storageErr("create check-in", err)
	}
	s.markStale(ctx, pact.ID)
	return ci, nil
}

func (s *PactService) findPact(ctx context.Context, id uint) (*models.Pact, error) {
	var pact models.Pact
	if err := s.db.WithContext(ctx).Take(&pact, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, storageErr("find pact", err)
	}
	return &pact, nil
}

func (s *PactService) markStale(ctx context.Context, pactID uint) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), invalidateTimeout)
	defer cancel()
	if err := s.inv.PactStale(ctx, pactID); err != nil {
		s.log.Warn("pact stale signal failed", zap.Uint("pact_id", pactID), zap.Error(err))
	}
}

func (s *PactService) evictProfile(ctx context.Context, userID uint) {
	if err := s.cache.Delete(context.WithoutCancel(ctx), ProfileKey(userID)); err != nil {
		s.log.Warn("profile cache evict failed", zap.Uint("user_id", userID), zap.Error(err))
	}
}

// ParseDeadline accepts RFC3339 timestamps and bare dates (midnight UTC).
func ParseDeadline(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, raw)
}

// NormalizeTags trims, lowercases and '#'-prefixes tags, dropping empties and duplicates.
// An entry may itself hold several comma separated tags.
func NormalizeTags(raw []string) []string {
	seen := map[string]bool{}
	out := []string{}
	for _, entry := range raw {
		for _, t := range strings.Split(entry, ",") {
			t = strings.ToLower(strings.TrimLeft(strings.TrimSpace(t), "#"))
			t = strings.Join(strings.Fields(t), "")
			if t == "" {
				continue
			}
			t = "#" + t
			if seen[t] {
				continue
			}
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

func validImageURL(raw string) bool {
	if len(raw) > maxImageURLLen {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
