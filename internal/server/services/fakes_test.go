package services

import (
	"context"
	"database/sql"
	"sort"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"

	"github.com/buffermesh/buffermesh/internal/common"
	"github.com/buffermesh/buffermesh/internal/dbx"
	"github.com/buffermesh/buffermesh/internal/server/models"
	"github.com/buffermesh/buffermesh/internal/server/repositories/buffers"
	"github.com/buffermesh/buffermesh/internal/server/repositories/clients"
	"github.com/buffermesh/buffermesh/internal/server/repositories/deviceaccesstokens"
	"github.com/buffermesh/buffermesh/internal/server/repositories/devices"
	"github.com/buffermesh/buffermesh/internal/server/repositories/devicetokens"
	"github.com/buffermesh/buffermesh/internal/server/repositories/messages"
	"github.com/buffermesh/buffermesh/internal/server/repositories/refreshtokens"
	"github.com/buffermesh/buffermesh/internal/server/repositories/schemes"
)

// --- helpers ---

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return db, mock
}

// --- in-memory repositories ---

type fakeClientsRepo struct {
	byUID map[string]*models.Client
}

func newFakeClientsRepo() *fakeClientsRepo {
	return &fakeClientsRepo{byUID: make(map[string]*models.Client)}
}

func (f *fakeClientsRepo) Create(ctx context.Context, c *models.Client) (*models.Client, error) {
	for _, existing := range f.byUID {
		if existing.Email == c.Email {
			return nil, common.ErrorAlreadyExists
		}
	}
	stored := *c
	stored.UID = uuid.NewString()
	stored.CreatedAt = time.Now()
	f.byUID[stored.UID] = &stored
	return &stored, nil
}

func (f *fakeClientsRepo) GetByEmail(ctx context.Context, email string) (*models.Client, error) {
	for _, c := range f.byUID {
		if c.Email == email {
			return c, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeClientsRepo) GetByUID(ctx context.Context, uid string) (*models.Client, error) {
	if c, ok := f.byUID[uid]; ok {
		return c, nil
	}
	return nil, common.ErrorNotFound
}

type fakeDevicesRepo struct {
	byUID map[string]*models.Device
}

func newFakeDevicesRepo() *fakeDevicesRepo {
	return &fakeDevicesRepo{byUID: make(map[string]*models.Device)}
}

func (f *fakeDevicesRepo) Create(ctx context.Context, d *models.Device) (*models.Device, error) {
	stored := *d
	stored.UID = uuid.NewString()
	stored.CreatedAt = time.Now()
	f.byUID[stored.UID] = &stored
	return &stored, nil
}

func (f *fakeDevicesRepo) GetByUID(ctx context.Context, uid string) (*models.Device, error) {
	if d, ok := f.byUID[uid]; ok {
		return d, nil
	}
	return nil, common.ErrorNotFound
}

func (f *fakeDevicesRepo) ListByClient(ctx context.Context, clientUID string) ([]*models.Device, error) {
	var out []*models.Device
	for _, d := range f.byUID {
		if d.ClientUID == clientUID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeDevicesRepo) Delete(ctx context.Context, uid string) error {
	if _, ok := f.byUID[uid]; !ok {
		return common.ErrorNotFound
	}
	delete(f.byUID, uid)
	return nil
}

type fakeBuffersRepo struct {
	byUID map[string]*models.Buffer
}

func newFakeBuffersRepo() *fakeBuffersRepo {
	return &fakeBuffersRepo{byUID: make(map[string]*models.Buffer)}
}

func (f *fakeBuffersRepo) Create(ctx context.Context, b *models.Buffer) (*models.Buffer, error) {
	stored := *b
	stored.UID = uuid.NewString()
	stored.CreatedAt = time.Now()
	f.byUID[stored.UID] = &stored
	return &stored, nil
}

func (f *fakeBuffersRepo) GetByUID(ctx context.Context, uid string) (*models.Buffer, error) {
	if b, ok := f.byUID[uid]; ok {
		return b, nil
	}
	return nil, common.ErrorNotFound
}

func (f *fakeBuffersRepo) ListByClient(ctx context.Context, clientUID string) ([]*models.Buffer, error) {
	var out []*models.Buffer
	for _, b := range f.byUID {
		if b.ClientUID == clientUID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeBuffersRepo) ListByDevice(ctx context.Context, deviceUID string) ([]*models.Buffer, error) {
	var out []*models.Buffer
	for _, b := range f.byUID {
		if b.DeviceUID == deviceUID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeBuffersRepo) Delete(ctx context.Context, uid string) error {
	if _, ok := f.byUID[uid]; !ok {
		return common.ErrorNotFound
	}
	delete(f.byUID, uid)
	return nil
}

type fakeSchemesRepo struct {
	byUID map[string]*models.ConnectionScheme
}

func newFakeSchemesRepo() *fakeSchemesRepo {
	return &fakeSchemesRepo{byUID: make(map[string]*models.ConnectionScheme)}
}

func (f *fakeSchemesRepo) Create(ctx context.Context, s *models.ConnectionScheme) (*models.ConnectionScheme, error) {
	stored := *s
	stored.UID = uuid.NewString()
	stored.CreatedAt = time.Now()
	f.byUID[stored.UID] = &stored
	return &stored, nil
}

func (f *fakeSchemesRepo) GetByUID(ctx context.Context, uid string) (*models.ConnectionScheme, error) {
	if s, ok := f.byUID[uid]; ok {
		return s, nil
	}
	return nil, common.ErrorNotFound
}

func (f *fakeSchemesRepo) ListByClient(ctx context.Context, clientUID string) ([]*models.ConnectionScheme, error) {
	var out []*models.ConnectionScheme
	for _, s := range f.byUID {
		if s.ClientUID == clientUID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeSchemesRepo) ListByUsedBuffer(ctx context.Context, bufferUID string) ([]*models.ConnectionScheme, error) {
	var out []*models.ConnectionScheme
	for _, s := range f.byUID {
		if s.UsesBuffer(bufferUID) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeSchemesRepo) Update(ctx context.Context, s *models.ConnectionScheme) error {
	if _, ok := f.byUID[s.UID]; !ok {
		return common.ErrorNotFound
	}
	stored := *s
	f.byUID[s.UID] = &stored
	return nil
}

func (f *fakeSchemesRepo) Delete(ctx context.Context, uid string) error {
	if _, ok := f.byUID[uid]; !ok {
		return common.ErrorNotFound
	}
	delete(f.byUID, uid)
	return nil
}

type fakeMessagesRepo struct {
	byUID map[string]*models.Message
}

func newFakeMessagesRepo() *fakeMessagesRepo {
	return &fakeMessagesRepo{byUID: make(map[string]*models.Message)}
}

func (f *fakeMessagesRepo) Add(ctx context.Context, m *models.Message) error {
	if _, ok := f.byUID[m.UID]; ok {
		return common.ErrorAlreadyExists
	}
	stored := *m
	f.byUID[m.UID] = &stored
	return nil
}

func (f *fakeMessagesRepo) ListByBuffers(ctx context.Context, bufferUIDs []string, offset, limit int) ([]*models.Message, error) {
	wanted := make(map[string]bool, len(bufferUIDs))
	for _, uid := range bufferUIDs {
		wanted[uid] = true
	}

	var all []*models.Message
	for _, m := range f.byUID {
		if wanted[m.BufferUID] {
			all = append(all, m)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.Before(all[j].CreatedAt)
		}
		return all[i].UID < all[j].UID
	})

	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit >= 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (f *fakeMessagesRepo) DeleteByUIDs(ctx context.Context, uids []string) error {
	for _, uid := range uids {
		delete(f.byUID, uid)
	}
	return nil
}

func (f *fakeMessagesRepo) DeleteByBuffer(ctx context.Context, bufferUID string) (int64, error) {
	var n int64
	for uid, m := range f.byUID {
		if m.BufferUID == bufferUID {
			delete(f.byUID, uid)
			n++
		}
	}
	return n, nil
}

func (f *fakeMessagesRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	var n int64
	for uid, m := range f.byUID {
		if m.CreatedAt.Before(cutoff) {
			delete(f.byUID, uid)
			n++
		}
	}
	return n, nil
}

type fakeRefreshTokensRepo struct {
	byUID map[string]*models.RefreshToken
}

func newFakeRefreshTokensRepo() *fakeRefreshTokensRepo {
	return &fakeRefreshTokensRepo{byUID: make(map[string]*models.RefreshToken)}
}

func (f *fakeRefreshTokensRepo) Add(ctx context.Context, t *models.RefreshToken) error {
	stored := *t
	f.byUID[t.UID] = &stored
	return nil
}

func (f *fakeRefreshTokensRepo) FindByUID(ctx context.Context, uid string) (*models.RefreshToken, error) {
	if t, ok := f.byUID[uid]; ok {
		return t, nil
	}
	return nil, common.ErrorNotFound
}

func (f *fakeRefreshTokensRepo) Replace(ctx context.Context, uid, signature string, issuedAt, expires time.Time) error {
	t, ok := f.byUID[uid]
	if !ok {
		return common.ErrorNotFound
	}
	t.Signature = signature
	t.IssuedAt = issuedAt
	t.Expires = expires
	return nil
}

func (f *fakeRefreshTokensRepo) Delete(ctx context.Context, uid string) error {
	if _, ok := f.byUID[uid]; !ok {
		return common.ErrorNotFound
	}
	delete(f.byUID, uid)
	return nil
}

type fakeDeviceTokensRepo struct {
	byUID map[string]*models.DeviceToken
}

func newFakeDeviceTokensRepo() *fakeDeviceTokensRepo {
	return &fakeDeviceTokensRepo{byUID: make(map[string]*models.DeviceToken)}
}

func (f *fakeDeviceTokensRepo) Add(ctx context.Context, t *models.DeviceToken) error {
	for _, existing := range f.byUID {
		if existing.DeviceUID == t.DeviceUID {
			return common.ErrorAlreadyExists
		}
	}
	stored := *t
	f.byUID[t.UID] = &stored
	return nil
}

func (f *fakeDeviceTokensRepo) FindByUID(ctx context.Context, uid string) (*models.DeviceToken, error) {
	if t, ok := f.byUID[uid]; ok {
		return t, nil
	}
	return nil, common.ErrorNotFound
}

func (f *fakeDeviceTokensRepo) FindByDevice(ctx context.Context, deviceUID string) (*models.DeviceToken, error) {
	for _, t := range f.byUID {
		if t.DeviceUID == deviceUID {
			return t, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeDeviceTokensRepo) Delete(ctx context.Context, uid string) error {
	if _, ok := f.byUID[uid]; !ok {
		return common.ErrorNotFound
	}
	delete(f.byUID, uid)
	return nil
}

type fakeDeviceAccessTokensRepo struct {
	byUID map[string]*models.DeviceAccessToken
}

func newFakeDeviceAccessTokensRepo() *fakeDeviceAccessTokensRepo {
	return &fakeDeviceAccessTokensRepo{byUID: make(map[string]*models.DeviceAccessToken)}
}

func (f *fakeDeviceAccessTokensRepo) AddIfNoneActive(ctx context.Context, t *models.DeviceAccessToken, now time.Time) error {
	for _, existing := range f.byUID {
		if existing.DeviceTokenUID == t.DeviceTokenUID && existing.Expires.After(now) {
			return common.ErrAccessTokenExists
		}
	}
	stored := *t
	f.byUID[t.UID] = &stored
	return nil
}

func (f *fakeDeviceAccessTokensRepo) FindByUID(ctx context.Context, uid string) (*models.DeviceAccessToken, error) {
	if t, ok := f.byUID[uid]; ok {
		return t, nil
	}
	return nil, common.ErrorNotFound
}

func (f *fakeDeviceAccessTokensRepo) Delete(ctx context.Context, uid string) error {
	if _, ok := f.byUID[uid]; !ok {
		return common.ErrorNotFound
	}
	delete(f.byUID, uid)
	return nil
}

func (f *fakeDeviceAccessTokensRepo) DeleteByDeviceToken(ctx context.Context, deviceTokenUID string) error {
	for uid, t := range f.byUID {
		if t.DeviceTokenUID == deviceTokenUID {
			delete(f.byUID, uid)
		}
	}
	return nil
}

// fakeRepoManager vends the same in-memory repositories regardless of the
// DBTX, so transactional code paths run against shared state.
type fakeRepoManager struct {
	clients            *fakeClientsRepo
	devices            *fakeDevicesRepo
	buffers            *fakeBuffersRepo
	schemes            *fakeSchemesRepo
	messages           *fakeMessagesRepo
	refreshTokens      *fakeRefreshTokensRepo
	deviceTokens       *fakeDeviceTokensRepo
	deviceAccessTokens *fakeDeviceAccessTokensRepo
}

func newFakeRepoManager() *fakeRepoManager {
	return &fakeRepoManager{
		clients:            newFakeClientsRepo(),
		devices:            newFakeDevicesRepo(),
		buffers:            newFakeBuffersRepo(),
		schemes:            newFakeSchemesRepo(),
		messages:           newFakeMessagesRepo(),
		refreshTokens:      newFakeRefreshTokensRepo(),
		deviceTokens:       newFakeDeviceTokensRepo(),
		deviceAccessTokens: newFakeDeviceAccessTokensRepo(),
	}
}

func (f *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }

func (f *fakeRepoManager) Clients(dbx.DBTX) clients.Repository            { return f.clients }
func (f *fakeRepoManager) Devices(dbx.DBTX) devices.Repository            { return f.devices }
func (f *fakeRepoManager) Buffers(dbx.DBTX) buffers.Repository            { return f.buffers }
func (f *fakeRepoManager) Schemes(dbx.DBTX) schemes.Repository            { return f.schemes }
func (f *fakeRepoManager) Messages(dbx.DBTX) messages.Repository          { return f.messages }
func (f *fakeRepoManager) RefreshTokens(dbx.DBTX) refreshtokens.Repository {
	return f.refreshTokens
}
func (f *fakeRepoManager) DeviceTokens(dbx.DBTX) devicetokens.Repository {
	return f.deviceTokens
}
func (f *fakeRepoManager) DeviceAccessTokens(dbx.DBTX) deviceaccesstokens.Repository {
	return f.deviceAccessTokens
}
