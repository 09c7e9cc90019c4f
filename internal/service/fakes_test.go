package service

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/iliyamo/storefront/internal/identity"
	"github.com/iliyamo/storefront/internal/model"
	"github.com/iliyamo/storefront/internal/payment"
	"github.com/iliyamo/storefront/internal/repository"
	"github.com/iliyamo/storefront/internal/utils"
)

// fakeStore is an in-memory identity.Store.
type fakeStore struct {
	users      map[string]model.User
	passwords  map[string]string
	verifyOK   map[string]bool
	calls      int
	loginErr   error
	createErr  error
	hideLookup bool // simulates a duplicate created between lookup and insert
}

func newFakeStore() *fakeStore {
	return &fakeStore{users: map[string]model.User{}, passwords: map[string]string{}, verifyOK: map[string]bool{}}
}

func (f *fakeStore) FindByEmail(_ context.Context, email string) (model.User, bool, error) {
	f.calls++
	if f.hideLookup {
		return model.User{}, false, nil
	}
	u, ok := f.users[email]
	return u, ok, nil
}

func (f *fakeStore) Create(_ context.Context, email, password string) (model.User, error) {
	f.calls++
	if f.createErr != nil {
		return model.User{}, f.createErr
	}
	if _, ok := f.users[email]; ok {
		return model.User{}, identity.ErrEmailExists
	}
	u := model.User{ID: uint64(len(f.users) + 1), Email: email, Role: model.RoleUser}
	f.users[email] = u
	f.passwords[email] = password
	return u, nil
}

func (f *fakeStore) VerifyEmail(_ context.Context, token string) error {
	f.calls++
	if f.verifyOK[token] {
		delete(f.verifyOK, token)
		return nil
	}
	return identity.ErrInvalidToken
}

func (f *fakeStore) Login(_ context.Context, email, password string) (identity.Session, error) {
	f.calls++
	if f.loginErr != nil {
		return identity.Session{}, f.loginErr
	}
	u, ok := f.users[email]
	if !ok || f.passwords[email] != password {
		return identity.Session{}, identity.ErrInvalidCredentials
	}
	return identity.Session{User: u, Access: utils.AccessToken{Token: "access"}, Refresh: utils.RefreshToken{Raw: "refresh"}}, nil
}

func (f *fakeStore) Refresh(_ context.Context, raw string) (identity.Session, error) {
	if raw != "refresh" {
		return identity.Session{}, identity.ErrInvalidToken
	}
	return identity.Session{Refresh: utils.RefreshToken{Raw: "refresh-2"}}, nil
}

func (f *fakeStore) Logout(context.Context, string) error { return nil }

func (f *fakeStore) User(_ context.Context, id uint64) (model.User, error) {
	for _, u := range f.users {
		if u.ID == id {
			return u, nil
		}
	}
	return model.User{}, identity.ErrUserNotFound
}

// fakeCatalog serves FindByIDs and ListApproved from a slice.
type fakeCatalog struct {
	products []model.Product
	calls    int
	lastList repository.ProductListQuery
}

func (f *fakeCatalog) FindByIDs(_ context.Context, ids []string) ([]model.Product, error) {
	f.calls++
	want := map[string]bool{}
	for _, id := range ids {
		want[id] = true
	}
	var out []model.Product
	for _, p := range f.products {
		if want[p.ID] {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeCatalog) ListApproved(_ context.Context, q repository.ProductListQuery) ([]model.Product, bool, error) {
	f.calls++
	f.lastList = q
	var approved []model.Product
	for _, p := range f.products {
		if p.ApprovedForSale == model.ApprovalApproved && (q.Category == "" || p.Category == q.Category) {
			approved = append(approved, p)
		}
	}
	sort.SliceStable(approved, func(i, j int) bool {
		if q.Sort == "asc" {
			return approved[i].CreatedAt.Before(approved[j].CreatedAt)
		}
		return approved[i].CreatedAt.After(approved[j].CreatedAt)
	})
	start := (q.Page - 1) * q.Limit
	if start >= len(approved) {
		return []model.Product{}, false, nil
	}
	end := start + q.Limit
	if end > len(approved) {
		end = len(approved)
	}
	return approved[start:end], end < len(approved), nil
}

// fakeOrders keeps orders in memory.
type fakeOrders struct {
	mu     sync.Mutex
	orders map[string]model.Order
	calls  int
}

func newFakeOrders() *fakeOrders { return &fakeOrders{orders: map[string]model.Order{}} }

func (f *fakeOrders) Create(_ context.Context, userID uint64, productIDs []string) (model.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	o := model.Order{ID: uuid.NewString(), UserID: userID, ProductIDs: append([]string{}, productIDs...)}
	f.orders[o.ID] = o
	return o, nil
}

func (f *fakeOrders) GetByID(_ context.Context, id string) (model.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return model.Order{}, repository.ErrOrderNotFound
	}
	return o, nil
}

func (f *fakeOrders) MarkPaid(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return repository.ErrOrderNotFound
	}
	o.IsPaid = true
	f.orders[id] = o
	return nil
}

type fakeEvents struct {
	seen map[string]bool
}

func (f *fakeEvents) Record(_ context.Context, id, _ string) (bool, error) {
	if f.seen[id] {
		return false, nil
	}
	f.seen[id] = true
	return true, nil
}

func (f *fakeEvents) Forget(_ context.Context, id string) error {
	delete(f.seen, id)
	return nil
}

type fakeGateway struct {
	params []payment.CheckoutParams
	url    string
	err    error
}

func (f *fakeGateway) CreateCheckoutSession(_ context.Context, p payment.CheckoutParams) (string, error) {
	f.params = append(f.params, p)
	if f.err != nil {
		return "", f.err
	}
	return f.url, nil
}

type published struct {
	queue string
	event any
}

type fakePublisher struct {
	sent []published
	err  error
}

func (f *fakePublisher) Publish(_ context.Context, q string, ev any) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, published{queue: q, event: ev})
	return nil
}

var errBoom = errors.New("boom")
