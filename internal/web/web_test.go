package web

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/storefront/internal/logging"
	"github.com/iliyamo/storefront/internal/rpc"
)

type stubProcedures struct {
	createErr error
	signInErr error
	verifyErr error
	pages     []rpc.InfiniteProductsOutput
	listErr   error
	listCalls []rpc.InfiniteProductsInput
	paid      bool
	pollErr   error
	session   []*http.Cookie

	checkout    []rpc.CreateSessionInput
	checkoutURL *string
	checkoutErr error
}

func (s *stubProcedures) CreatePayloadUser(_ context.Context, in rpc.Credentials) (rpc.CreateAccountOutput, error) {
	if s.createErr != nil {
		return rpc.CreateAccountOutput{}, s.createErr
	}
	return rpc.CreateAccountOutput{Success: true, SendToEmail: in.Email}, nil
}

func (s *stubProcedures) VerifyEmail(context.Context, string) (rpc.SuccessOutput, error) {
	return rpc.SuccessOutput{Success: s.verifyErr == nil}, s.verifyErr
}

func (s *stubProcedures) SignIn(context.Context, rpc.Credentials) (rpc.SuccessOutput, []*http.Cookie, error) {
	if s.signInErr != nil {
		return rpc.SuccessOutput{}, nil, s.signInErr
	}
	return rpc.SuccessOutput{Success: true}, []*http.Cookie{
		{Name: "storefront-token", Value: "jwt", Path: "/", HttpOnly: true},
	}, nil
}

func (s *stubProcedures) CreateSession(_ context.Context, in rpc.CreateSessionInput, session []*http.Cookie) (rpc.CreateSessionOutput, error) {
	s.checkout = append(s.checkout, in)
	s.session = session
	if s.checkoutErr != nil {
		return rpc.CreateSessionOutput{}, s.checkoutErr
	}
	return rpc.CreateSessionOutput{URL: s.checkoutURL}, nil
}

func (s *stubProcedures) PollOrderStatus(_ context.Context, _ string, session []*http.Cookie) (rpc.OrderStatusOutput, error) {
	s.session = session
	return rpc.OrderStatusOutput{IsPaid: s.paid}, s.pollErr
}

func (s *stubProcedures) GetInfiniteProducts(_ context.Context, in rpc.InfiniteProductsInput) (rpc.InfiniteProductsOutput, error) {
	s.listCalls = append(s.listCalls, in)
	if s.listErr != nil {
		return rpc.InfiniteProductsOutput{}, s.listErr
	}
	i := len(s.listCalls) - 1
	if i >= len(s.pages) {
		return rpc.InfiniteProductsOutput{}, nil
	}
	return s.pages[i], nil
}

func newServer(t *testing.T, stub *stubProcedures) *echo.Echo {
	t.Helper()
	r, err := NewRenderer()
	require.NoError(t, err)
	e := echo.New()
	e.Renderer = r
	NewPages(stub, logging.Discard(), "storefront-token").Register(e)
	return e
}

func postForm(e *echo.Echo, target, email, password string) *httptest.ResponseRecorder {
	form := url.Values{"email": {email}, "password": {password}}
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func postCheckout(e *echo.Echo, ids []string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	form := url.Values{"productIds": ids}
	req := httptest.NewRequest(http.MethodPost, "/checkout", strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func get(e *echo.Echo, target string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func cookieNamed(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == name {
			return ck
		}
	}
	return nil
}

func page(next *int, names ...string) rpc.InfiniteProductsOutput {
	out := rpc.InfiniteProductsOutput{NextPage: next}
	for _, name := range names {
		out.Items = append(out.Items, rpc.Product{ID: name, Name: name})
	}
	return out
}

func intp(v int) *int { return &v }

func TestSignInRedirect(t *testing.T) {
	cases := []struct {
		origin string
		seller bool
		want   string
	}{
		{"cart", false, "/cart"},
		{"cart", true, "/cart"},
		{"", true, "/sell"},
		{"", false, "/"},
		{"//evil.example", false, "/evil.example"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, signInRedirect(tc.origin, tc.seller), "origin=%q seller=%v", tc.origin, tc.seller)
	}
}

func TestProductReelPendingPlaceholders(t *testing.T) {
	reel := NewProductReel("", rpc.ProductQuery{Limit: 3})
	slots := reel.Slots()
	require.Len(t, slots, 3)
	for _, s := range slots {
		assert.Nil(t, s)
	}

	assert.Len(t, NewProductReel("", rpc.ProductQuery{}).Slots(), FallbackLimit)
}

func TestProductReelFlattensPages(t *testing.T) {
	reel := NewProductReel("", rpc.ProductQuery{Limit: 2})
	reel.Resolve(page(intp(2), "a", "b"))
	reel.Resolve(page(nil, "c", "d"))

	var ids []string
	for _, p := range reel.Slots() {
		require.NotNil(t, p)
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []string{"a", "b", "c", "d"}, ids)
	_, more := reel.NextPage()
	assert.False(t, more)
}

func TestProductReelSettledEmpty(t *testing.T) {
	reel := NewProductReel("", rpc.ProductQuery{Limit: 3})
	reel.Fail(errors.New("boom"))
	assert.Empty(t, reel.Slots())
	assert.False(t, reel.Pending())
}

func TestProductReelLoadFollowsCursor(t *testing.T) {
	stub := &stubProcedures{pages: []rpc.InfiniteProductsOutput{
		page(intp(2), "a"),
		page(intp(3), "b"),
		page(intp(4), "c"),
	}}
	reel := NewProductReel("", rpc.ProductQuery{Limit: 1, Category: "icons"})
	reel.Load(context.Background(), stub, 2)

	require.Len(t, stub.listCalls, 2)
	assert.Equal(t, 0, stub.listCalls[0].Cursor)
	assert.Equal(t, 2, stub.listCalls[1].Cursor)
	assert.Equal(t, "icons", stub.listCalls[1].Query.Category)
	assert.Len(t, reel.Slots(), 2)
	next, ok := reel.NextPage()
	assert.True(t, ok)
	assert.Equal(t, 3, next)
}

func TestProductReelDeadlineKeepsPending(t *testing.T) {
	stub := &stubProcedures{listErr: context.DeadlineExceeded}
	reel := NewProductReel("", rpc.ProductQuery{Limit: 3})
	reel.Load(context.Background(), stub, 1)
	assert.True(t, reel.Pending())
	assert.NoError(t, reel.Err())
	assert.Len(t, reel.Slots(), 3)
}

func TestSignUpSuccessRedirectsWithFlash(t *testing.T) {
	e := newServer(t, &stubProcedures{})
	rec := postForm(e, "/sign-up", "New@Example.com", "longenough")

	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/verify-email?to=new%40example.com", rec.Header().Get(echo.HeaderLocation))

	flash := cookieNamed(rec, flashCookie)
	require.NotNil(t, flash)

	// the next page shows and clears the flash
	rec = get(e, "/verify-email?to=new%40example.com", flash)
	assert.Contains(t, rec.Body.String(), "Verification email sent to new@example.com")
	assert.Contains(t, rec.Body.String(), "Check your email")
	cleared := cookieNamed(rec, flashCookie)
	require.NotNil(t, cleared)
	assert.Equal(t, -1, cleared.MaxAge)
}

func TestSignUpErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		email  string
		status int
		want   string
	}{
		{"conflict", rpc.Conflict("", nil), "a@b.co", http.StatusConflict, msgEmailTaken},
		{"internal", rpc.Internal(errors.New("db down")), "a@b.co", http.StatusInternalServerError, msgGeneric},
		{"invalid email", nil, "nope", http.StatusBadRequest, "Invalid email"},
		{"issue from server", &rpc.Error{Code: rpc.CodeBadRequest, Message: "bad", Issues: []rpc.Issue{{Field: "email", Message: "Email is required"}}}, "a@b.co", http.StatusBadRequest, "Email is required"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := newServer(t, &stubProcedures{createErr: tc.err})
			rec := postForm(e, "/sign-up", tc.email, "longenough")
			assert.Equal(t, tc.status, rec.Code)
			assert.Contains(t, rec.Body.String(), tc.want)
			assert.NotContains(t, rec.Body.String(), "db down")
		})
	}
}

func TestSignInForwardsCookiesAndRedirects(t *testing.T) {
	e := newServer(t, &stubProcedures{})

	rec := postForm(e, "/sign-in?origin=cart", "a@b.co", "longenough")
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/cart", rec.Header().Get(echo.HeaderLocation))
	session := cookieNamed(rec, "storefront-token")
	require.NotNil(t, session)
	assert.Equal(t, "jwt", session.Value)

	rec = postForm(e, "/sign-in?as=seller", "a@b.co", "longenough")
	assert.Equal(t, "/sell", rec.Header().Get(echo.HeaderLocation))

	rec = postForm(e, "/sign-in", "a@b.co", "longenough")
	assert.Equal(t, "/", rec.Header().Get(echo.HeaderLocation))
}

func TestSignInErrors(t *testing.T) {
	e := newServer(t, &stubProcedures{signInErr: rpc.Unauthorized("", nil)})
	rec := postForm(e, "/sign-in", "a@b.co", "longenough")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), msgBadCredentials)
	assert.Nil(t, cookieNamed(rec, "storefront-token"))

	e = newServer(t, &stubProcedures{signInErr: &rpc.Error{Code: rpc.CodeBadRequest, Message: "bad",
		Issues: []rpc.Issue{{Field: "email", Message: "Email is required"}}}})
	rec = postForm(e, "/sign-in", "a@b.co", "longenough")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Email is required")
	assert.NotContains(t, rec.Body.String(), msgBadCredentials)

	e = newServer(t, &stubProcedures{signInErr: errors.New("connection refused")})
	rec = postForm(e, "/sign-in", "a@b.co", "longenough")
	assert.Contains(t, rec.Body.String(), msgGeneric)
}

func TestSignInFormSellerTitle(t *testing.T) {
	e := newServer(t, &stubProcedures{})
	rec := get(e, "/sign-in?as=seller")
	assert.Contains(t, rec.Body.String(), "Sign in to your seller account")
	assert.Contains(t, rec.Body.String(), `action="/sign-in?as=seller"`)
}

func TestVerifyEmailPage(t *testing.T) {
	e := newServer(t, &stubProcedures{})
	assert.Contains(t, get(e, "/verify-email?token=abc").Body.String(), "all set")

	e = newServer(t, &stubProcedures{verifyErr: rpc.Unauthorized("", nil)})
	rec := get(e, "/verify-email?token=abc")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "not valid")
}

func TestProductsPage(t *testing.T) {
	stub := &stubProcedures{pages: []rpc.InfiniteProductsOutput{
		{Items: []rpc.Product{{ID: "p1", Name: "Icon pack", PriceCents: 1250}}, NextPage: intp(2)},
	}}
	e := newServer(t, stub)
	rec := get(e, "/products?category=icons&limit=1")

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Icon pack")
	assert.Contains(t, body, "$12.50")
	assert.Contains(t, body, "pages=2")
	assert.Contains(t, body, `name="productIds" value="p1"`)
	assert.Equal(t, 1, stub.listCalls[0].Limit)
}

func TestCheckoutRedirectsToGateway(t *testing.T) {
	gateway := "https://checkout.stripe.com/c/pay/cs_1"
	stub := &stubProcedures{checkoutURL: &gateway}
	e := newServer(t, stub)
	session := &http.Cookie{Name: "storefront-token", Value: "jwt"}

	rec := postCheckout(e, []string{"p1"})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/sign-in?origin=products", rec.Header().Get(echo.HeaderLocation))
	assert.Empty(t, stub.checkout)

	rec = postCheckout(e, []string{"p1", "p2"}, session)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, gateway, rec.Header().Get(echo.HeaderLocation))
	require.Len(t, stub.checkout, 1)
	assert.Equal(t, []string{"p1", "p2"}, stub.checkout[0].ProductIDs)
	require.Len(t, stub.session, 1)
	assert.Equal(t, "jwt", stub.session[0].Value)
}

func TestCheckoutFailures(t *testing.T) {
	session := &http.Cookie{Name: "storefront-token", Value: "jwt"}

	e := newServer(t, &stubProcedures{})
	rec := postCheckout(e, []string{"p1"}, session)
	require.Equal(t, http.StatusSeeOther, rec.Code, "no gateway URL")
	assert.Equal(t, "/products", rec.Header().Get(echo.HeaderLocation))
	assert.NotNil(t, cookieNamed(rec, flashCookie))

	e = newServer(t, &stubProcedures{checkoutErr: rpc.BadRequest("productIds must not be empty", nil)})
	rec = postCheckout(e, nil, session)
	assert.Equal(t, "/products", rec.Header().Get(echo.HeaderLocation))

	e = newServer(t, &stubProcedures{checkoutErr: rpc.Unauthorized("", nil)})
	rec = postCheckout(e, []string{"p1"}, session)
	assert.Equal(t, "/sign-in?origin=products", rec.Header().Get(echo.HeaderLocation))

	e = newServer(t, &stubProcedures{checkoutErr: errors.New("connection refused")})
	rec = postCheckout(e, []string{"p1"}, session)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestThankYouPage(t *testing.T) {
	stub := &stubProcedures{paid: true}
	e := newServer(t, stub)

	rec := get(e, "/thank-you?orderId=o1")
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Contains(t, rec.Header().Get(echo.HeaderLocation), "/sign-in?origin=")

	rec = get(e, "/thank-you?orderId=o1", &http.Cookie{Name: "storefront-token", Value: "jwt"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "payment was processed")
	require.Len(t, stub.session, 1)
	assert.Equal(t, "jwt", stub.session[0].Value)

	stub.pollErr = rpc.NotFound("", nil)
	rec = get(e, "/thank-you?orderId=zz", &http.Cookie{Name: "storefront-token", Value: "jwt"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
