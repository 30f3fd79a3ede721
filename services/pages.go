package services

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"github.com/cppla/pacts/models"
	"github.com/cppla/pacts/utils"
)

const (
	DefaultFeedLimit = 20
	MaxFeedLimit     = 50
)

// AuthorView is the public face of a user.
type AuthorView struct {
	ID       uint    `json:"id"`
	Username *string `json:"username"`
	Name     string  `json:"name"`
	Image    string  `json:"image"`
}

// PactRef is the short pact reference shown in the feed.
type PactRef struct {
	ID    uint   `json:"id"`
	Title string `json:"title"`
}

// CheckInView is a check-in with its derived kudo state for one viewer.
type CheckInView struct {
	ID            uint                 `json:"id"`
	PactID        uint                 `json:"pact_id"`
	Pact          *PactRef             `json:"pact,omitempty"`
	Content       string               `json:"content"`
	Status        models.CheckInStatus `json:"status"`
	ImageURL      string               `json:"image_url,omitempty"`
	CreatedAt     time.Time            `json:"created_at"`
	Author        AuthorView           `json:"author"`
	KudoCount     int64                `json:"kudo_count"`
	HasKudoed     bool                 `json:"has_kudoed"`
	CommentsCount int                  `json:"comments_count"`
}

// PactView is a pact with display fields computed at read time.
type PactView struct {
	ID          uint       `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Deadline    time.Time  `json:"deadline"`
	Tags        []string   `json:"tags"`
	IsCompleted bool       `json:"is_completed"`
	CompletedAt *time.Time `json:"completed_at"`
	CreatedAt   time.Time  `json:"created_at"`
	Author      AuthorView `json:"author"`
	DaysLeft    int        `json:"days_left"`
	State       string     `json:"state"`
}

// PactPage is everything the pact page shows.
type PactPage struct {
	Pact     PactView      `json:"pact"`
	CheckIns []CheckInView `json:"check_ins"`
}

// Profile is a user with their pacts, newest first.
type Profile struct {
	User  AuthorView `json:"user"`
	Email string     `json:"email,omitempty"`
	Pacts []PactView `json:"pacts"`
}

// Pages renders read views. Only data that no kudo toggle can change is cached;
// kudo_count, has_kudoed, days_left and state are filled per request, so a
// late cache fill can never pin an old count.
type Pages struct {
	db    *gorm.DB
	cache *utils.Cache
	log   *zap.Logger
	group singleflight.Group
	now   func() time.Time
}

func NewPages(db *gorm.DB, cache *utils.Cache, log *zap.Logger) *Pages {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pages{db: db, cache: cache, log: log, now: time.Now}
}

// PactPage returns the page for pactID as seen by viewer (nil for anonymous).
func (p *Pages) PactPage(ctx context.Context, pactID uint, viewer *Identity) (*PactPage, error) {
	var page PactPage
	if err := p.cached(ctx, PactPageKey(pactID), &page, func(ctx context.Context) (any, error) {
		return p.loadPactPage(ctx, pactID)
	}); err != nil {
		return nil, err
	}

	now := p.now()
	page.Pact.DaysLeft, page.Pact.State = pactClock(page.Pact, now)
	if err := p.attachKudos(ctx, viewer, page.CheckIns); err != nil {
		return nil, err
	}
	return &page, nil
}

// Feed returns the most recent check-ins across all pacts.
func (p *Pages) Feed(ctx context.Context, limit int, viewer *Identity) ([]CheckInView, error) {
	if limit <= 0 {
		limit = DefaultFeedLimit
	}
	if limit > MaxFeedLimit {
		limit = MaxFeedLimit
	}
	var items []CheckInView
	key := FeedCachePrefix + "recent:" + strconv.Itoa(limit)
	if err := p.cached(ctx, key, &items, func(ctx context.Context) (any, error) {
		return p.loadFeed(ctx, limit)
	}); err != nil {
		return nil, err
	}
	if err := p.attachKudos(ctx, viewer, items); err != nil {
		return nil, err
	}
	return items, nil
}

// Profile resolves key as a numeric id first, then as a username.
func (p *Pages) Profile(ctx context.Context, key string) (*Profile, error) {
	userID, err := p.resolveUser(ctx, key)
	if err != nil {
		return nil, err
	}
	var prof Profile
	if err := p.cached(ctx, ProfileKey(userID), &prof, func(ctx context.Context) (any, error) {
		return p.loadProfile(ctx, userID)
	}); err != nil {
		return nil, err
	}
	now := p.now()
	for i := range prof.Pacts {
		prof.Pacts[i].DaysLeft, prof.Pacts[i].State = pactClock(prof.Pacts[i], now)
	}
	return &prof, nil
}

// cached fills out from the cache or, on a miss, from load. Concurrent misses
// for the same key share one load.
func (p *Pages) cached(ctx context.Context, key string, out any, load func(context.Context) (any, error)) error {
	if b, ok := p.cache.GetBytes(ctx, key); ok {
		if err := json.Unmarshal(b, out); err == nil {
			return nil
		}
		p.log.Warn("discarding undecodable cache entry", zap.String("key", key))
	}
	v, err, _ := p.group.Do(key, func() (any, error) {
		// detached so one caller's cancellation does not fail the others
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		data, err := load(loadCtx)
		if err != nil {
			return nil, err
		}
		b, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		p.cache.SetBytes(loadCtx, key, b)
		return b, nil
	})
	if err != nil {
		return err
	}
	return json.Unmarshal(v.([]byte), out)
}

func (p *Pages) loadPactPage(ctx context.Context, pactID uint) (*PactPage, error) {
	var pact models.Pact
	err := p.db.WithContext(ctx).Preload("User").Take(&pact, pactID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storageErr("load pact", err)
	}

	var cis []models.CheckIn
	err = p.db.WithContext(ctx).Preload("User").
		Where("pact_id = ?", pactID).
		Order("created_at DESC, id DESC").
		Find(&cis).Error
	if err != nil {
		return nil, storageErr("load check-ins", err)
	}
	return &PactPage{Pact: pactView(&pact), CheckIns: checkInViews(cis, false)}, nil
}

func (p *Pages) loadFeed(ctx context.Context, limit int) ([]CheckInView, error) {
	var cis []models.CheckIn
	err := p.db.WithContext(ctx).Preload("User").Preload("Pact").
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&cis).Error
	if err != nil {
		return nil, storageErr("load feed", err)
	}
	return checkInViews(cis, true), nil
}

func (p *Pages) loadProfile(ctx context.Context, userID uint) (*Profile, error) {
	var u models.User
	err := p.db.WithContext(ctx).
		Preload("Pacts", func(db *gorm.DB) *gorm.DB { return db.Order("created_at DESC, id DESC") }).
		Take(&u, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storageErr("load profile", err)
	}
	prof := &Profile{User: authorView(&u), Email: u.Email, Pacts: make([]PactView, 0, len(u.Pacts))}
	for i := range u.Pacts {
		pact := u.Pacts[i]
		pact.User = u
		prof.Pacts = append(prof.Pacts, pactView(&pact))
	}
	return prof, nil
}

func (p *Pages) resolveUser(ctx context.Context, key string) (uint, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return 0, ErrNotFound
	}
	var u models.User
	// a numeric key is an id first; a username that happens to be numeric is the fallback
	if id, err := strconv.ParseUint(key, 10, 64); err == nil {
		err := p.db.WithContext(ctx).Select("id").Take(&u, id).Error
		if err == nil {
			return u.ID, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, storageErr("resolve user", err)
		}
	}
	err := p.db.WithContext(ctx).Select("id").Where("username = ?", key).Take(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, storageErr("resolve user", err)
	}
	return u.ID, nil
}

// Stats are site-wide row counts.
type Stats struct {
	Users    int64 `json:"users"`
	Pacts    int64 `json:"pacts"`
	CheckIns int64 `json:"check_ins"`
	Kudos    int64 `json:"kudos"`
}

// Stats counts rows per table. Not cached; each COUNT is cheap on the primary key.
func (p *Pages) Stats(ctx context.Context) (*Stats, error) {
	var st Stats
	db := p.db.WithContext(ctx)
	for _, c := range []struct {
		model any
		dst   *int64
	}{
		{&models.User{}, &st.Users},
		{&models.Pact{}, &st.Pacts},
		{&models.CheckIn{}, &st.CheckIns},
		{&models.Kudo{}, &st.Kudos},
	} {
		if err := db.Model(c.model).Count(c.dst).Error; err != nil {
			return nil, storageErr("stats", err)
		}
	}
	return &st, nil
}

// checkInViews converts rows. Kudo fields are left for attachKudos.
func checkInViews(cis []models.CheckIn, withPact bool) []CheckInView {
	views := make([]CheckInView, 0, len(cis))
	for i := range cis {
		ci := &cis[i]
		v := CheckInView{
			ID:        ci.ID,
			PactID:    ci.PactID,
			Content:   ci.Content,
			Status:    ci.Status,
			ImageURL:  ci.ImageURL,
			CreatedAt: ci.CreatedAt,
			Author:    authorView(&ci.User),
		}
		if withPact {
			v.Pact = &PactRef{ID: ci.Pact.ID, Title: ci.Pact.Title}
		}
		views = append(views, v)
	}
	return views
}

// attachKudos sets KudoCount from COUNT(*) and HasKudoed for the viewer.
// Anonymous viewers see counts only.
func (p *Pages) attachKudos(ctx context.Context, viewer *Identity, views []CheckInView) error {
	if len(views) == 0 {
		return nil
	}
	ids := make([]uint, 0, len(views))
	for _, v := range views {
		ids = append(ids, v.ID)
	}
	counts, err := p.kudoCounts(ctx, ids)
	if err != nil {
		return err
	}
	mine := map[uint]bool{}
	if viewer != nil && viewer.UserID != 0 {
		if mine, err = p.viewerKudos(ctx, viewer.UserID, ids); err != nil {
			return err
		}
	}
	for i := range views {
		views[i].KudoCount = counts[views[i].ID]
		views[i].HasKudoed = mine[views[i].ID]
	}
	return nil
}

func (p *Pages) kudoCounts(ctx context.Context, checkInIDs []uint) (map[uint]int64, error) {
	type row struct {
		CheckInID uint
		N         int64
	}
	var rows []row
	err := p.db.WithContext(ctx).Model(&models.Kudo{}).
		Select("check_in_id, COUNT(*) AS n").
		Where("check_in_id IN ?", checkInIDs).
		Group("check_in_id").
		Scan(&rows).Error
	if err != nil {
		return nil, storageErr("count kudos", err)
	}
	out := make(map[uint]int64, len(rows))
	for _, r := range rows {
		out[r.CheckInID] = r.N
	}
	return out, nil
}

func (p *Pages) viewerKudos(ctx context.Context, userID uint, checkInIDs []uint) (map[uint]bool, error) {
	var mine []uint
	err := p.db.WithContext(ctx).Model(&models.Kudo{}).
		Where("user_id = ? AND check_in_id IN ?", userID, checkInIDs).
		Pluck("check_in_id", &mine).Error
	if err != nil {
		return nil, storageErr("load viewer kudos", err)
	}
	set := make(map[uint]bool, len(mine))
	for _, id := range mine {
		set[id] = true
	}
	return set, nil
}

func authorView(u *models.User) AuthorView {
	return AuthorView{ID: u.ID, Username: u.Username, Name: u.DisplayName(), Image: u.Image}
}

func pactView(p *models.Pact) PactView {
	return PactView{
		ID:          p.ID,
		Title:       p.Title,
		Description: p.Description,
		Deadline:    p.Deadline,
		Tags:        p.TagList(),
		IsCompleted: p.IsCompleted,
		CompletedAt: p.CompletedAt,
		CreatedAt:   p.CreatedAt,
		Author:      authorView(&p.User),
	}
}

func pactClock(v PactView, now time.Time) (int, string) {
	m := models.Pact{Deadline: v.Deadline, IsCompleted: v.IsCompleted}
	return m.DaysLeft(now), m.PactStatus(now)
}
