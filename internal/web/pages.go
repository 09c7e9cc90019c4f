// Package web serves the storefront's HTML pages.  Pages never touch the
// services directly: they validate input with the shared validator and call
// the procedures through the typed rpc client, the same way a browser
// client would.
package web

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/storefront/internal/rpc"
	"github.com/iliyamo/storefront/internal/validator"
)

// Messages shown after a form submission.
const (
	msgEmailTaken     = "This email is already in use. Sign in instead?"
	msgSignedIn       = "Signed in successfully"
	msgBadCredentials = "Invalid email or password"
	msgGeneric        = "Something went wrong. Please try again."
	msgEmptyCheckout  = "Pick at least one product to check out."
)

const (
	// maxReelPages bounds the ?pages= parameter of the product reel.
	maxReelPages = 10
	pageTimeout  = 5 * time.Second
	reelTimeout  = 2 * time.Second
)

// Procedures is the part of *rpc.Client the pages call.
type Procedures interface {
	CreatePayloadUser(ctx context.Context, in rpc.Credentials) (rpc.CreateAccountOutput, error)
	VerifyEmail(ctx context.Context, token string) (rpc.SuccessOutput, error)
	SignIn(ctx context.Context, in rpc.Credentials) (rpc.SuccessOutput, []*http.Cookie, error)
	CreateSession(ctx context.Context, in rpc.CreateSessionInput, session []*http.Cookie) (rpc.CreateSessionOutput, error)
	PollOrderStatus(ctx context.Context, orderID string, session []*http.Cookie) (rpc.OrderStatusOutput, error)
	GetInfiniteProducts(ctx context.Context, in rpc.InfiniteProductsInput) (rpc.InfiniteProductsOutput, error)
}

// Pages holds the page handlers.
type Pages struct {
	client        Procedures
	log           *logrus.Logger
	sessionCookie string
}

func NewPages(client Procedures, log *logrus.Logger, sessionCookie string) *Pages {
	return &Pages{client: client, log: log, sessionCookie: sessionCookie}
}

// Register mounts the pages on e.  e.Renderer must be a *Renderer.
func (p *Pages) Register(e *echo.Echo) {
	e.GET("/sign-up", p.SignUpForm)
	e.POST("/sign-up", p.SignUp)
	e.GET("/sign-in", p.SignInForm)
	e.POST("/sign-in", p.SignIn)
	e.GET("/verify-email", p.VerifyEmail)
	e.GET("/products", p.Products)
	e.POST("/checkout", p.Checkout)
	e.GET("/thank-you", p.ThankYou)
}

type base struct {
	Title string
	Flash *Flash
}

type formPage struct {
	base
	Email    string
	Error    string
	IsSeller bool
	Action   string
}

func (p *Pages) SignUpForm(c echo.Context) error {
	return c.Render(http.StatusOK, "sign_up", formPage{base: p.base(c, "Create an account"), Action: "/sign-up"})
}

// SignUp handles the sign-up form.  On success the user lands on the
// "check your inbox" page.
func (p *Pages) SignUp(c echo.Context) error {
	page := formPage{base: p.base(c, "Create an account"), Action: "/sign-up"}

	var in validator.Credentials
	if err := c.Bind(&in); err != nil {
		page.Error = msgGeneric
		return c.Render(http.StatusBadRequest, "sign_up", page)
	}
	if err := validator.ValidateCredentials(&in); err != nil {
		page.Email, page.Error = in.Email, firstIssue(err)
		return c.Render(http.StatusBadRequest, "sign_up", page)
	}

	ctx, cancel := procCtx(c, pageTimeout)
	defer cancel()
	out, err := p.client.CreatePayloadUser(ctx, rpc.Credentials{Email: in.Email, Password: in.Password})
	if err != nil {
		page.Email, page.Error = in.Email, signUpMessage(err)
		p.logFailure(c, rpc.ProcCreatePayloadUser, err)
		return c.Render(rpc.From(err).Code.HTTPStatus(), "sign_up", page)
	}

	setFlash(c, flashSuccess, "Verification email sent to "+out.SendToEmail)
	return c.Redirect(http.StatusSeeOther, "/verify-email?to="+url.QueryEscape(out.SendToEmail))
}

func signUpMessage(err error) string {
	e := rpc.From(err)
	switch e.Code {
	case rpc.CodeConflict:
		return msgEmailTaken
	case rpc.CodeBadRequest:
		if len(e.Issues) > 0 {
			return e.Issues[0].Message
		}
	}
	return msgGeneric
}

func signInMessage(err error) string {
	e := rpc.From(err)
	switch e.Code {
	case rpc.CodeUnauthorized:
		return msgBadCredentials
	case rpc.CodeBadRequest:
		if len(e.Issues) > 0 {
			return e.Issues[0].Message
		}
	}
	return msgGeneric
}

func firstIssue(err error) string {
	var fe validator.FieldErrors
	if errors.As(err, &fe) && fe.First() != "" {
		return fe.First()
	}
	return msgGeneric
}

func (p *Pages) SignInForm(c echo.Context) error {
	return c.Render(http.StatusOK, "sign_in", p.signInPage(c))
}

// SignIn handles the sign-in form.  The session cookies issued by
// auth.signIn are handed on to the browser.
func (p *Pages) SignIn(c echo.Context) error {
	page := p.signInPage(c)

	var in validator.Credentials
	if err := c.Bind(&in); err != nil {
		page.Error = msgGeneric
		return c.Render(http.StatusBadRequest, "sign_in", page)
	}
	if err := validator.ValidateCredentials(&in); err != nil {
		page.Email, page.Error = in.Email, firstIssue(err)
		return c.Render(http.StatusBadRequest, "sign_in", page)
	}

	ctx, cancel := procCtx(c, pageTimeout)
	defer cancel()
	_, cookies, err := p.client.SignIn(ctx, rpc.Credentials{Email: in.Email, Password: in.Password})
	if err != nil {
		page.Email, page.Error = in.Email, signInMessage(err)
		p.logFailure(c, rpc.ProcSignIn, err)
		return c.Render(rpc.From(err).Code.HTTPStatus(), "sign_in", page)
	}

	for _, ck := range cookies {
		c.SetCookie(ck)
	}
	setFlash(c, flashSuccess, msgSignedIn)
	return c.Redirect(http.StatusSeeOther, signInRedirect(c.QueryParam("origin"), page.IsSeller))
}

func (p *Pages) signInPage(c echo.Context) formPage {
	seller := c.QueryParam("as") == "seller"
	title := "Sign in to your account"
	if seller {
		title = "Sign in to your seller account"
	}
	action := "/sign-in"
	if q := c.QueryString(); q != "" {
		action += "?" + q
	}
	return formPage{base: p.base(c, title), IsSeller: seller, Action: action}
}

// signInRedirect picks the page after a successful sign-in: the origin the
// user came from, the seller area, or home.
func signInRedirect(origin string, seller bool) string {
	// leading slashes would make an off-site, scheme-relative URL
	origin = strings.TrimLeft(origin, "/\\")
	switch {
	case origin != "":
		return "/" + origin
	case seller:
		return "/sell"
	default:
		return "/"
	}
}

type verifyPage struct {
	base
	State string // "sent", "verified" or "failed"
	Email string
}

// VerifyEmail either confirms ?token= or, with ?to=, tells the user to
// check their inbox.
func (p *Pages) VerifyEmail(c echo.Context) error {
	page := verifyPage{base: p.base(c, "Verify your email")}

	token := c.QueryParam("token")
	if token == "" {
		page.State, page.Email = "sent", c.QueryParam("to")
		return c.Render(http.StatusOK, "verify_email", page)
	}

	ctx, cancel := procCtx(c, pageTimeout)
	defer cancel()
	if _, err := p.client.VerifyEmail(ctx, token); err != nil {
		p.logFailure(c, rpc.ProcVerifyEmail, err)
		page.State = "failed"
		return c.Render(rpc.From(err).Code.HTTPStatus(), "verify_email", page)
	}
	page.State = "verified"
	return c.Render(http.StatusOK, "verify_email", page)
}

type productsPage struct {
	base
	Reel     *ProductReel
	MoreHref string
}

// Products renders the product reel.  ?pages=N loads the first N pages so
// "load more" is a plain link.
func (p *Pages) Products(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	pages, _ := strconv.Atoi(c.QueryParam("pages"))
	if pages < 1 {
		pages = 1
	}
	if pages > maxReelPages {
		pages = maxReelPages
	}

	reel := NewProductReel("Brand new", rpc.ProductQuery{
		Category: c.QueryParam("category"),
		Sort:     c.QueryParam("sort"),
		Limit:    limit,
	})
	ctx, cancel := procCtx(c, reelTimeout)
	defer cancel()
	reel.Load(ctx, p.client, pages)
	if err := reel.Err(); err != nil {
		p.logFailure(c, rpc.ProcGetInfiniteProducts, err)
	}

	page := productsPage{base: p.base(c, "Products"), Reel: reel}
	if _, ok := reel.NextPage(); ok && pages < maxReelPages {
		q := c.QueryParams()
		q.Set("pages", strconv.Itoa(pages+1))
		page.MoreHref = "/products?" + q.Encode()
	}
	return c.Render(http.StatusOK, "products", page)
}

// Checkout starts a hosted checkout for the posted productIds and sends the
// browser to the gateway's page.
func (p *Pages) Checkout(c echo.Context) error {
	session := p.session(c)
	if len(session) == 0 {
		return c.Redirect(http.StatusSeeOther, "/sign-in?origin=products")
	}
	form, err := c.FormParams()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, msgGeneric)
	}

	ctx, cancel := procCtx(c, pageTimeout)
	defer cancel()
	out, err := p.client.CreateSession(ctx, rpc.CreateSessionInput{ProductIDs: form["productIds"]}, session)
	if err != nil {
		p.logFailure(c, rpc.ProcCreateSession, err)
		switch rpc.CodeOf(err) {
		case rpc.CodeUnauthorized:
			return c.Redirect(http.StatusSeeOther, "/sign-in?origin=products")
		case rpc.CodeBadRequest:
			setFlash(c, flashError, msgEmptyCheckout)
			return c.Redirect(http.StatusSeeOther, "/products")
		}
		return echo.NewHTTPError(http.StatusBadGateway, msgGeneric)
	}
	if out.URL == nil {
		// the order exists unpaid; the user can try again
		setFlash(c, flashError, msgGeneric)
		return c.Redirect(http.StatusSeeOther, "/products")
	}
	return c.Redirect(http.StatusSeeOther, *out.URL)
}

type thankYouPage struct {
	base
	OrderID string
	IsPaid  bool
}

// ThankYou shows the payment state of ?orderId=.  Unpaid orders refresh
// until the webhook marks them paid.
func (p *Pages) ThankYou(c echo.Context) error {
	orderID := c.QueryParam("orderId")
	session := p.session(c)
	if len(session) == 0 {
		return c.Redirect(http.StatusSeeOther, "/sign-in?origin="+url.QueryEscape("thank-you?orderId="+orderID))
	}

	ctx, cancel := procCtx(c, pageTimeout)
	defer cancel()
	out, err := p.client.PollOrderStatus(ctx, orderID, session)
	if err != nil {
		p.logFailure(c, rpc.ProcPollOrderStatus, err)
		if rpc.CodeOf(err) == rpc.CodeNotFound {
			return echo.NewHTTPError(http.StatusNotFound, "order not found")
		}
		return echo.NewHTTPError(http.StatusBadGateway, msgGeneric)
	}
	return c.Render(http.StatusOK, "thank_you", thankYouPage{
		base:    p.base(c, "Thanks for your order"),
		OrderID: orderID,
		IsPaid:  out.IsPaid,
	})
}

// session returns the browser's session cookie, ready to forward.
func (p *Pages) session(c echo.Context) []*http.Cookie {
	ck, err := c.Cookie(p.sessionCookie)
	if err != nil || ck.Value == "" {
		return nil
	}
	return []*http.Cookie{ck}
}

// procCtx bounds a procedure call and tags it with the browser's address,
// so per-client limits on the procedures apply to the browser and not to
// this server.
func procCtx(c echo.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), timeout)
	return rpc.WithClientIP(ctx, c.RealIP()), cancel
}

func (p *Pages) base(c echo.Context, title string) base {
	return base{Title: title, Flash: popFlash(c)}
}

func (p *Pages) logFailure(c echo.Context, proc string, err error) {
	e := rpc.From(err)
	p.log.WithFields(logrus.Fields{
		"request_id": c.Response().Header().Get(echo.HeaderXRequestID),
		"procedure":  proc,
		"code":       e.Code,
	}).WithError(err).Warn("page procedure call failed")
}
