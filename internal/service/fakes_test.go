package service

import (
	"context"
	"fmt"
	"io"
	"math"
	"sort"
	"sync"

	"recommerce/internal/blob"
	"recommerce/internal/domain"
	"recommerce/internal/repository"

	"github.com/google/uuid"
)

// memDB is a shared in-memory store backing the fake repositories. A fake
// transaction manager snapshots the whole store before the function runs and
// restores it on error, mirroring the all-or-nothing behavior of the real
// one.
type memDB struct {
	mu       sync.Mutex
	users    map[uuid.UUID]domain.User
	products map[uuid.UUID]domain.Product
	images   map[uuid.UUID][]domain.Image
	bookings map[uuid.UUID]domain.Booking
	reviews  map[uuid.UUID]domain.Review
	tokens   map[string]domain.RefreshToken
	favs     map[uuid.UUID]map[uuid.UUID]bool
	trades   map[tradeKey]bool

	// failures injects an error for a named operation
	failures map[string]error
}

type tradeKey struct {
	user    uuid.UUID
	product uuid.UUID
	side    domain.TradeSide
}

func newMemDB() *memDB {
	return &memDB{
		users:    map[uuid.UUID]domain.User{},
		products: map[uuid.UUID]domain.Product{},
		images:   map[uuid.UUID][]domain.Image{},
		bookings: map[uuid.UUID]domain.Booking{},
		reviews:  map[uuid.UUID]domain.Review{},
		tokens:   map[string]domain.RefreshToken{},
		favs:     map[uuid.UUID]map[uuid.UUID]bool{},
		trades:   map[tradeKey]bool{},
		failures: map[string]error{},
	}
}

func (db *memDB) fail(op string) error {
	return db.failures[op]
}

func (db *memDB) snapshot() *memDB {
	db.mu.Lock()
	defer db.mu.Unlock()

	cp := newMemDB()
	for k, v := range db.users {
		cp.users[k] = v
	}
	for k, v := range db.products {
		cp.products[k] = v
	}
	for k, v := range db.images {
		cp.images[k] = append([]domain.Image{}, v...)
	}
	for k, v := range db.bookings {
		cp.bookings[k] = v
	}
	for k, v := range db.reviews {
		cp.reviews[k] = v
	}
	for k, v := range db.tokens {
		cp.tokens[k] = v
	}
	for k, v := range db.favs {
		inner := map[uuid.UUID]bool{}
		for pk := range v {
			inner[pk] = true
		}
		cp.favs[k] = inner
	}
	for k := range db.trades {
		cp.trades[k] = true
	}
	return cp
}

func (db *memDB) restore(snap *memDB) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.users = snap.users
	db.products = snap.products
	db.images = snap.images
	db.bookings = snap.bookings
	db.reviews = snap.reviews
	db.tokens = snap.tokens
	db.favs = snap.favs
	db.trades = snap.trades
}

type fakeTx struct {
	db *memDB
}

func (t *fakeTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	snap := t.db.snapshot()
	if err := fn(ctx); err != nil {
		t.db.restore(snap)
		return err
	}
	return nil
}

// --- users ---

type fakeUsers struct {
	db *memDB
}

func (f *fakeUsers) Create(ctx context.Context, user *domain.User) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	for _, u := range f.db.users {
		if u.Email == user.Email {
			return repository.ErrUserAlreadyExists
		}
	}
	f.db.users[user.ID] = *user
	return nil
}

func (f *fakeUsers) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	for _, u := range f.db.users {
		if u.Email == email {
			cp := u
			return &cp, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (f *fakeUsers) FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	u, ok := f.db.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	cp := u
	return &cp, nil
}

func (f *fakeUsers) List(ctx context.Context) ([]*domain.User, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	users := []*domain.User{}
	for _, u := range f.db.users {
		cp := u
		users = append(users, &cp)
	}
	return users, nil
}

func (f *fakeUsers) UpdateProfile(ctx context.Context, user *domain.User) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if _, ok := f.db.users[user.ID]; !ok {
		return repository.ErrUserNotFound
	}
	f.db.users[user.ID] = *user
	return nil
}

func (f *fakeUsers) SetSellerFlag(ctx context.Context, id uuid.UUID, isSeller bool) error {
	if err := f.db.fail("users.SetSellerFlag"); err != nil {
		return err
	}
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	u, ok := f.db.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.IsSeller = isSeller
	f.db.users[id] = u
	return nil
}

func (f *fakeUsers) SetRating(ctx context.Context, id uuid.UUID, rating float64) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	u, ok := f.db.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.Rating = rating
	f.db.users[id] = u
	return nil
}

func (f *fakeUsers) SetBlocked(ctx context.Context, id uuid.UUID, blocked bool) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	u, ok := f.db.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.IsBlocked = blocked
	f.db.users[id] = u
	return nil
}

func (f *fakeUsers) Delete(ctx context.Context, id uuid.UUID) error {
	if err := f.db.fail("users.Delete"); err != nil {
		return err
	}
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if _, ok := f.db.users[id]; !ok {
		return repository.ErrUserNotFound
	}
	delete(f.db.users, id)
	return nil
}

func (f *fakeUsers) AddFavorite(ctx context.Context, userID, productID uuid.UUID) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if f.db.favs[userID] == nil {
		f.db.favs[userID] = map[uuid.UUID]bool{}
	}
	f.db.favs[userID][productID] = true
	return nil
}

func (f *fakeUsers) RemoveFavorite(ctx context.Context, userID, productID uuid.UUID) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	delete(f.db.favs[userID], productID)
	return nil
}

func (f *fakeUsers) ListFavorites(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	ids := []uuid.UUID{}
	for id := range f.db.favs[userID] {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids, nil
}

func (f *fakeUsers) RemoveFavoriteEverywhere(ctx context.Context, productIDs []uuid.UUID) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	for _, set := range f.db.favs {
		for _, pid := range productIDs {
			delete(set, pid)
		}
	}
	return nil
}

func (f *fakeUsers) RemoveFavoritesOfUser(ctx context.Context, userID uuid.UUID) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	delete(f.db.favs, userID)
	return nil
}

func (f *fakeUsers) AddTrade(ctx context.Context, userID, productID uuid.UUID, side domain.TradeSide) error {
	if err := f.db.fail("users.AddTrade"); err != nil {
		return err
	}
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	f.db.trades[tradeKey{userID, productID, side}] = true
	return nil
}

func (f *fakeUsers) ListTrades(ctx context.Context, userID uuid.UUID, side domain.TradeSide) ([]uuid.UUID, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	ids := []uuid.UUID{}
	for k := range f.db.trades {
		if k.user == userID && k.side == side {
			ids = append(ids, k.product)
		}
	}
	return ids, nil
}

func (f *fakeUsers) DeleteTradesForProducts(ctx context.Context, productIDs []uuid.UUID) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	for k := range f.db.trades {
		for _, pid := range productIDs {
			if k.product == pid {
				delete(f.db.trades, k)
			}
		}
	}
	return nil
}

func (f *fakeUsers) DeleteTradesForUser(ctx context.Context, userID uuid.UUID) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	for k := range f.db.trades {
		if k.user == userID {
			delete(f.db.trades, k)
		}
	}
	return nil
}

// --- products ---

type fakeProducts struct {
	db *memDB
}

func (f *fakeProducts) Create(ctx context.Context, product *domain.Product) error {
	if err := f.db.fail("products.Create"); err != nil {
		return err
	}
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	f.db.products[product.ID] = *product
	f.db.images[product.ID] = append([]domain.Image{}, product.Images...)
	return nil
}

func (f *fakeProducts) Update(ctx context.Context, product *domain.Product) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if _, ok := f.db.products[product.ID]; !ok {
		return repository.ErrProductNotFound
	}
	f.db.products[product.ID] = *product
	return nil
}

func (f *fakeProducts) Delete(ctx context.Context, id uuid.UUID) error {
	if err := f.db.fail("products.Delete"); err != nil {
		return err
	}
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if _, ok := f.db.products[id]; !ok {
		return repository.ErrProductNotFound
	}
	delete(f.db.products, id)
	delete(f.db.images, id)
	return nil
}

func (f *fakeProducts) DeleteBySeller(ctx context.Context, sellerID uuid.UUID) error {
	if err := f.db.fail("products.DeleteBySeller"); err != nil {
		return err
	}
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	for id, p := range f.db.products {
		if p.SellerID == sellerID {
			delete(f.db.products, id)
			delete(f.db.images, id)
		}
	}
	return nil
}

func (f *fakeProducts) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	p, ok := f.db.products[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	cp := p
	cp.Images = append([]domain.Image{}, f.db.images[id]...)
	return &cp, nil
}

func (f *fakeProducts) List(ctx context.Context, filter repository.ProductFilter) ([]*domain.Product, int, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	products := []*domain.Product{}
	for id, p := range f.db.products {
		if filter.Category != "" && p.Category != filter.Category {
			continue
		}
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		cp := p
		cp.Images = append([]domain.Image{}, f.db.images[id]...)
		products = append(products, &cp)
	}
	return products, len(products), nil
}

func (f *fakeProducts) ListBySeller(ctx context.Context, sellerID uuid.UUID) ([]*domain.Product, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	products := []*domain.Product{}
	for id, p := range f.db.products {
		if p.SellerID == sellerID {
			cp := p
			cp.Images = append([]domain.Image{}, f.db.images[id]...)
			products = append(products, &cp)
		}
	}
	return products, nil
}

func (f *fakeProducts) CountBySeller(ctx context.Context, sellerID uuid.UUID) (int, error) {
	products, _ := f.ListBySeller(ctx, sellerID)
	return len(products), nil
}

func (f *fakeProducts) UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.ProductStatus) error {
	if err := f.db.fail("products.UpdateStatus"); err != nil {
		return err
	}
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	p, ok := f.db.products[id]
	if !ok || p.Status != from {
		return repository.ErrProductStatusConflict
	}
	p.Status = to
	f.db.products[id] = p
	return nil
}

func (f *fakeProducts) ImagesBySeller(ctx context.Context, sellerID uuid.UUID) ([]domain.Image, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	images := []domain.Image{}
	for id, p := range f.db.products {
		if p.SellerID == sellerID {
			images = append(images, f.db.images[id]...)
		}
	}
	return images, nil
}

// --- bookings ---

type fakeBookings struct {
	db *memDB
}

func (f *fakeBookings) Create(ctx context.Context, booking *domain.Booking) error {
	if err := f.db.fail("bookings.Create"); err != nil {
		return err
	}
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	f.db.bookings[booking.ID] = *booking
	return nil
}

func (f *fakeBookings) FindByID(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	b, ok := f.db.bookings[id]
	if !ok {
		return nil, repository.ErrBookingNotFound
	}
	cp := b
	return &cp, nil
}

func (f *fakeBookings) FindActiveByProductAndBuyer(ctx context.Context, productID, buyerID uuid.UUID) (*domain.Booking, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	for _, b := range f.db.bookings {
		if b.ProductID == productID && b.BuyerID == buyerID && b.Status.Active() {
			cp := b
			return &cp, nil
		}
	}
	return nil, repository.ErrBookingNotFound
}

func (f *fakeBookings) UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.BookingStatus) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	b, ok := f.db.bookings[id]
	if !ok || b.Status != from {
		return repository.ErrBookingStatusConflict
	}
	b.Status = to
	f.db.bookings[id] = b
	return nil
}

func (f *fakeBookings) CancelActive(ctx context.Context, id uuid.UUID) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	b, ok := f.db.bookings[id]
	if !ok || !b.Status.Active() {
		return repository.ErrBookingStatusConflict
	}
	b.Status = domain.BookingCancelled
	f.db.bookings[id] = b
	return nil
}

func (f *fakeBookings) CancelOtherPending(ctx context.Context, productID, exceptID uuid.UUID) (int64, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var n int64
	for id, b := range f.db.bookings {
		if b.ProductID == productID && id != exceptID && b.Status == domain.BookingPending {
			b.Status = domain.BookingCancelled
			f.db.bookings[id] = b
			n++
		}
	}
	return n, nil
}

func (f *fakeBookings) ListByBuyer(ctx context.Context, buyerID uuid.UUID) ([]*domain.Booking, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	bookings := []*domain.Booking{}
	for _, b := range f.db.bookings {
		if b.BuyerID == buyerID {
			cp := b
			bookings = append(bookings, &cp)
		}
	}
	return bookings, nil
}

func (f *fakeBookings) ListBySeller(ctx context.Context, sellerID uuid.UUID) ([]*domain.Booking, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	bookings := []*domain.Booking{}
	for _, b := range f.db.bookings {
		if b.SellerID == sellerID {
			cp := b
			bookings = append(bookings, &cp)
		}
	}
	return bookings, nil
}

func (f *fakeBookings) DeleteByProduct(ctx context.Context, productID uuid.UUID) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	for id, b := range f.db.bookings {
		if b.ProductID == productID {
			delete(f.db.bookings, id)
		}
	}
	return nil
}

func (f *fakeBookings) DeleteByUser(ctx context.Context, userID uuid.UUID) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	for id, b := range f.db.bookings {
		if b.BuyerID == userID || b.SellerID == userID {
			delete(f.db.bookings, id)
		}
	}
	return nil
}

// --- reviews ---

type fakeReviews struct {
	db *memDB
}

func (f *fakeReviews) Create(ctx context.Context, review *domain.Review) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	for _, rv := range f.db.reviews {
		if rv.ReviewerID == review.ReviewerID && rv.BookingID == review.BookingID {
			return repository.ErrDuplicateReview
		}
	}
	f.db.reviews[review.ID] = *review
	return nil
}

func (f *fakeReviews) FindByID(ctx context.Context, id uuid.UUID) (*domain.Review, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	rv, ok := f.db.reviews[id]
	if !ok {
		return nil, repository.ErrReviewNotFound
	}
	cp := rv
	return &cp, nil
}

func (f *fakeReviews) FindByReviewerAndBooking(ctx context.Context, reviewerID, bookingID uuid.UUID) (*domain.Review, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	for _, rv := range f.db.reviews {
		if rv.ReviewerID == reviewerID && rv.BookingID == bookingID {
			cp := rv
			return &cp, nil
		}
	}
	return nil, repository.ErrReviewNotFound
}

func (f *fakeReviews) ListByReviewer(ctx context.Context, reviewerID uuid.UUID) ([]*domain.Review, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	reviews := []*domain.Review{}
	for _, rv := range f.db.reviews {
		if rv.ReviewerID == reviewerID {
			cp := rv
			reviews = append(reviews, &cp)
		}
	}
	return reviews, nil
}

func (f *fakeReviews) Delete(ctx context.Context, id uuid.UUID) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if _, ok := f.db.reviews[id]; !ok {
		return repository.ErrReviewNotFound
	}
	delete(f.db.reviews, id)
	return nil
}

func (f *fakeReviews) DeleteByUser(ctx context.Context, userID uuid.UUID) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	for id, rv := range f.db.reviews {
		if rv.ReviewerID == userID || rv.SellerID == userID {
			delete(f.db.reviews, id)
		}
	}
	return nil
}

func (f *fakeReviews) AverageRatingForSeller(ctx context.Context, sellerID uuid.UUID) (float64, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var sum, n float64
	for _, rv := range f.db.reviews {
		if rv.SellerID == sellerID {
			sum += float64(rv.Rating)
			n++
		}
	}
	if n == 0 {
		return domain.NoRating, nil
	}
	return math.Round(sum/n*10) / 10, nil
}

func (f *fakeReviews) SellersReviewedBy(ctx context.Context, reviewerID uuid.UUID) ([]uuid.UUID, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	seen := map[uuid.UUID]bool{}
	ids := []uuid.UUID{}
	for _, rv := range f.db.reviews {
		if rv.ReviewerID == reviewerID && rv.SellerID != reviewerID && !seen[rv.SellerID] {
			seen[rv.SellerID] = true
			ids = append(ids, rv.SellerID)
		}
	}
	return ids, nil
}

func (f *fakeReviews) ImagesByUser(ctx context.Context, userID uuid.UUID) ([]domain.Image, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	images := []domain.Image{}
	for _, rv := range f.db.reviews {
		if (rv.ReviewerID == userID || rv.SellerID == userID) && !rv.Image.Empty() {
			images = append(images, rv.Image)
		}
	}
	return images, nil
}

// --- refresh tokens ---

type fakeTokens struct {
	db *memDB
}

func (f *fakeTokens) Create(ctx context.Context, token *domain.RefreshToken) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	f.db.tokens[token.Token] = *token
	return nil
}

func (f *fakeTokens) FindByToken(ctx context.Context, token string) (*domain.RefreshToken, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	t, ok := f.db.tokens[token]
	if !ok {
		return nil, repository.ErrRefreshTokenNotFound
	}
	if t.Revoked {
		return nil, repository.ErrRefreshTokenRevoked
	}
	cp := t
	return &cp, nil
}

func (f *fakeTokens) Revoke(ctx context.Context, token string) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	t, ok := f.db.tokens[token]
	if !ok {
		return repository.ErrRefreshTokenNotFound
	}
	t.Revoked = true
	f.db.tokens[token] = t
	return nil
}

func (f *fakeTokens) DeleteByUser(ctx context.Context, userID uuid.UUID) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	for k, t := range f.db.tokens {
		if t.UserID == userID {
			delete(f.db.tokens, k)
		}
	}
	return nil
}

// --- blobs ---

type fakeBlobs struct {
	mu         sync.Mutex
	objects    map[string]bool
	deleted    []string
	uploads    int
	failUpload error
	failAfter  int // fail uploads once this many succeeded, when > 0
	failDelete error
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{objects: map[string]bool{}}
}

func (f *fakeBlobs) Upload(ctx context.Context, r io.Reader, folder, filename, contentType string) (blob.Object, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUpload != nil {
		return blob.Object{}, f.failUpload
	}
	if f.failAfter > 0 && f.uploads >= f.failAfter {
		return blob.Object{}, fmt.Errorf("upload quota exceeded")
	}
	f.uploads++
	id := fmt.Sprintf("%s/%s-%d", folder, filename, f.uploads)
	f.objects[id] = true
	return blob.Object{ID: id, URL: "https://blobs.test/" + id}, nil
}

func (f *fakeBlobs) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDelete != nil {
		return f.failDelete
	}
	delete(f.objects, id)
	f.deleted = append(f.deleted, id)
	return nil
}

var (
	_ repository.UserRepository         = (*fakeUsers)(nil)
	_ repository.ProductRepository      = (*fakeProducts)(nil)
	_ repository.BookingRepository      = (*fakeBookings)(nil)
	_ repository.ReviewRepository       = (*fakeReviews)(nil)
	_ repository.RefreshTokenRepository = (*fakeTokens)(nil)
	_ repository.TxManager              = (*fakeTx)(nil)
	_ blob.Store                        = (*fakeBlobs)(nil)
)
