package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	. "github.com/smartystreets/goconvey/convey"
	"golang.org/x/crypto/bcrypt"

	"github.com/gaeliam100/unravel-sql-game-back/internal/adapters/auth"
	"github.com/gaeliam100/unravel-sql-game-back/internal/adapters/http/api"
	"github.com/gaeliam100/unravel-sql-game-back/internal/adapters/sandbox"
	service "github.com/gaeliam100/unravel-sql-game-back/internal/app"
	"github.com/gaeliam100/unravel-sql-game-back/internal/domain/model"
	"github.com/gaeliam100/unravel-sql-game-back/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

const testOrigin = "http://localhost:5173"

// newHandler builds the full HTTP stack over a fresh in-memory service.
func newHandler() (http.Handler, *service.Service) {
	svc := service.New(service.WithAuthOptions(auth.WithBcryptCost(bcrypt.MinCost)))
	if err := svc.Start(context.Background()); err != nil {
		panic(err)
	}
	return buildHandler(svc, svc), svc
}

func buildHandler(deps api.Dependencies, stats api.StatsProvider) http.Handler {
	server := api.NewServer(deps, stats, api.WithAllowedOrigins(testOrigin))
	router := mux.NewRouter()
	server.Register(context.Background(), router)
	return server.Handler(router)
}

func do(h http.Handler, method, path, body, token string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, http.NoBody)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

type authBody struct {
	Msg          string       `json:"msg"`
	User         model.Player `json:"user"`
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
}

func register(h http.Handler, name string) authBody {
	w := do(h, http.MethodPost, "/auth/register", fmt.Sprintf(`{"username":%q,"password":"pw"}`, name), "")
	if w.Code != http.StatusCreated {
		panic(fmt.Sprintf("register %s: %d %s", name, w.Code, w.Body.String()))
	}
	var body authBody
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		panic(err)
	}
	return body
}

func recordBody(playerID string, level int, difficulty string, elapsed, errs int) string {
	return fmt.Sprintf(`{"idUser":%q,"level":%d,"difficulty":%q,"time":%d,"errorCount":%d}`,
		playerID, level, difficulty, elapsed, errs)
}

func decode(w *httptest.ResponseRecorder) map[string]any {
	var m map[string]any
	So(json.Unmarshal(w.Body.Bytes(), &m), ShouldBeNil)
	return m
}

func cookie(w *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestAuthEndpoints(t *testing.T) {
	Convey("Given the API over a fresh service", t, func() {
		h, svc := newHandler()
		defer svc.Stop()

		Convey("When a player registers", func() {
			w := do(h, http.MethodPost, "/auth/register", `{"username":"alice","password":"pw"}`, "")

			Convey("Then the player and HTTP-only cookies come back", func() {
				So(w.Code, ShouldEqual, http.StatusCreated)
				body := decode(w)
				So(body["msg"], ShouldEqual, "User registered successfully")
				So(body["user"].(map[string]any)["username"], ShouldEqual, "alice")
				So(body["user"].(map[string]any), ShouldNotContainKey, "PasswordHash")

				access := cookie(w, "access_token_cookie")
				So(access, ShouldNotBeNil)
				So(access.HttpOnly, ShouldBeTrue)
				So(cookie(w, "refresh_token_cookie"), ShouldNotBeNil)
			})

			Convey("Then the same username conflicts", func() {
				w := do(h, http.MethodPost, "/auth/register", `{"username":"alice","password":"other"}`, "")
				So(w.Code, ShouldEqual, http.StatusConflict)
			})
		})

		Convey("When credentials are missing or wrong", func() {
			So(do(h, http.MethodPost, "/auth/register", `{"username":"bob"}`, "").Code, ShouldEqual, http.StatusBadRequest)
			So(do(h, http.MethodPost, "/auth/register", ``, "").Code, ShouldEqual, http.StatusBadRequest)

			register(h, "bob")
			w := do(h, http.MethodPost, "/auth/login", `{"username":"bob","password":"nope"}`, "")
			So(w.Code, ShouldEqual, http.StatusUnauthorized)
			So(decode(w)["message"], ShouldEqual, "invalid credentials")
		})

		Convey("When an authenticated player uses the session", func() {
			reg := register(h, "carol")

			Convey("Then /users/me accepts the Bearer header", func() {
				w := do(h, http.MethodGet, "/users/me", "", reg.AccessToken)
				So(w.Code, ShouldEqual, http.StatusOK)
				So(decode(w)["username"], ShouldEqual, "carol")
			})

			Convey("Then /users/me accepts the access cookie", func() {
				req := httptest.NewRequest(http.MethodGet, "/users/me", http.NoBody)
				req.AddCookie(&http.Cookie{Name: "access_token_cookie", Value: reg.AccessToken})
				w := httptest.NewRecorder()
				h.ServeHTTP(w, req)
				So(w.Code, ShouldEqual, http.StatusOK)
			})

			Convey("Then refresh issues a new access token from the cookie", func() {
				req := httptest.NewRequest(http.MethodPost, "/auth/refresh", http.NoBody)
				req.AddCookie(&http.Cookie{Name: "refresh_token_cookie", Value: reg.RefreshToken})
				w := httptest.NewRecorder()
				h.ServeHTTP(w, req)
				So(w.Code, ShouldEqual, http.StatusOK)
				So(cookie(w, "access_token_cookie"), ShouldNotBeNil)
				So(cookie(w, "refresh_token_cookie"), ShouldBeNil)
			})

			Convey("Then an access token cannot refresh", func() {
				w := do(h, http.MethodPost, "/auth/refresh", "", reg.AccessToken)
				So(w.Code, ShouldEqual, http.StatusUnauthorized)
			})

			Convey("Then logout clears cookies and revokes the token", func() {
				w := do(h, http.MethodPost, "/auth/logout", "", reg.AccessToken)
				So(w.Code, ShouldEqual, http.StatusOK)
				So(cookie(w, "access_token_cookie").MaxAge, ShouldBeLessThan, 0)

				So(do(h, http.MethodGet, "/users/me", "", reg.AccessToken).Code, ShouldEqual, http.StatusUnauthorized)
			})
		})

		Convey("When no token is sent", func() {
			for _, path := range []string{"/users/me", "/ranking/easy", "/ranking/easy/1"} {
				So(do(h, http.MethodGet, path, "", "").Code, ShouldEqual, http.StatusUnauthorized)
			}
			So(do(h, http.MethodPost, "/records", recordBody("x", 1, "easy", 1, 0), "").Code, ShouldEqual, http.StatusUnauthorized)
			So(do(h, http.MethodGet, "/users/me", "", "forged").Code, ShouldEqual, http.StatusUnauthorized)
		})
	})
}

func TestRecordEndpoint(t *testing.T) {
	Convey("Given an authenticated player", t, func() {
		h, svc := newHandler()
		defer svc.Stop()
		p := register(h, "dave")
		id := p.User.ID

		Convey("When a valid record is posted", func() {
			w := do(h, http.MethodPost, "/records", recordBody(id, 1, "easy", 50, 1), p.AccessToken)

			Convey("Then it is saved", func() {
				So(w.Code, ShouldEqual, http.StatusCreated)
				So(decode(w)["message"], ShouldEqual, "Record saved successfully")
			})
		})

		Convey("When the legacy path is used", func() {
			w := do(h, http.MethodPost, "/create-record", recordBody(id, 1, "easy", 50, 1), p.AccessToken)
			So(w.Code, ShouldEqual, http.StatusCreated)
		})

		Convey("When numbers arrive as strings", func() {
			body := fmt.Sprintf(`{"idUser":%q,"level":"2","difficulty":"hard","time":"42","errorCount":"0"}`, id)
			So(do(h, http.MethodPost, "/records", body, p.AccessToken).Code, ShouldEqual, http.StatusCreated)
		})

		Convey("When a number is not an integer", func() {
			body := fmt.Sprintf(`{"idUser":%q,"level":1,"difficulty":"easy","time":"abc","errorCount":0}`, id)
			w := do(h, http.MethodPost, "/records", body, p.AccessToken)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(decode(w)["message"], ShouldEqual, "time, level, and errorCount must be valid integers")
		})

		Convey("When a field is missing", func() {
			body := fmt.Sprintf(`{"idUser":%q,"level":1,"difficulty":"easy","errorCount":0}`, id)
			w := do(h, http.MethodPost, "/records", body, p.AccessToken)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(decode(w)["message"], ShouldEqual, "missing required field: time")
		})

		Convey("When the record names another player", func() {
			w := do(h, http.MethodPost, "/records", recordBody("someone-else", 1, "easy", 50, 1), p.AccessToken)
			So(w.Code, ShouldEqual, http.StatusForbidden)
		})

		Convey("When the record names another player and carries a bad number", func() {
			body := `{"idUser":"someone-else","level":1,"difficulty":"easy","time":50.5,"errorCount":0}`
			w := do(h, http.MethodPost, "/records", body, p.AccessToken)

			Convey("Then ownership answers before number parsing", func() {
				So(w.Code, ShouldEqual, http.StatusForbidden)
				So(decode(w)["message"], ShouldEqual, "user id mismatch")
			})
		})

		Convey("When the difficulty is not a string", func() {
			body := fmt.Sprintf(`{"idUser":%q,"level":1,"difficulty":7,"time":"abc","errorCount":0}`, id)
			w := do(h, http.MethodPost, "/records", body, p.AccessToken)

			Convey("Then the difficulty is reported before the bad number", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(decode(w)["message"], ShouldContainSubstring, "invalid difficulty")
			})
		})

		Convey("When a number is null", func() {
			body := fmt.Sprintf(`{"idUser":%q,"level":1,"difficulty":"easy","time":null,"errorCount":0}`, id)
			w := do(h, http.MethodPost, "/records", body, p.AccessToken)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(decode(w)["message"], ShouldEqual, "time, level, and errorCount must be valid integers")
		})

		Convey("When a value overflows the stored integer range", func() {
			w := do(h, http.MethodPost, "/records", recordBody(id, 1, "easy", 3_000_000_000, 0), p.AccessToken)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(decode(w)["message"], ShouldContainSubstring, "must be <= 2147483647")
		})

		Convey("When the body is not JSON", func() {
			w := do(h, http.MethodPost, "/records", "not json", p.AccessToken)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(decode(w)["message"], ShouldEqual, "no data provided")
		})

		Convey("When values are out of range", func() {
			w := do(h, http.MethodPost, "/records", recordBody(id, 0, "easy", 50, 1), p.AccessToken)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(decode(w)["message"], ShouldEqual, "time and errorCount must be >= 0, level must be >= 1")

			w = do(h, http.MethodPost, "/records", recordBody(id, 1, "legendary", 50, 1), p.AccessToken)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When a submission id is retried", func() {
			body := fmt.Sprintf(`{"idUser":%q,"level":1,"difficulty":"easy","time":9,"errorCount":0,"submissionId":"abc"}`, id)
			first := do(h, http.MethodPost, "/records", body, p.AccessToken)
			second := do(h, http.MethodPost, "/records", body, p.AccessToken)

			So(first.Code, ShouldEqual, http.StatusCreated)
			So(second.Code, ShouldEqual, http.StatusOK)
			So(decode(second)["duplicate"], ShouldEqual, true)
		})
	})
}

func TestRankingEndpoints(t *testing.T) {
	Convey("Given two registered players", t, func() {
		h, svc := newHandler()
		defer svc.Stop()
		a := register(h, "ana")
		b := register(h, "ben")

		Convey("When nobody has played a level", func() {
			w := do(h, http.MethodGet, "/ranking/easy/1", "", a.AccessToken)

			Convey("Then an empty view is returned with a message", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				body := decode(w)
				So(body["top5"], ShouldBeEmpty)
				So(body["currentUser"], ShouldBeNil)
				So(body["totalPlayers"], ShouldEqual, 0)
				So(body["message"], ShouldEqual, "No players have completed this level yet")
			})
		})

		Convey("When both players post runs", func() {
			So(do(h, http.MethodPost, "/records", recordBody(a.User.ID, 1, "easy", 50, 1), a.AccessToken).Code, ShouldEqual, http.StatusCreated)
			So(do(h, http.MethodPost, "/records", recordBody(b.User.ID, 1, "easy", 60, 0), b.AccessToken).Code, ShouldEqual, http.StatusCreated)

			w := do(h, http.MethodGet, "/ranking/easy/1", "", b.AccessToken)

			Convey("Then faster time ranks first", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				body := decode(w)
				top := body["top5"].([]any)
				So(top, ShouldHaveLength, 2)
				So(top[0].(map[string]any)["username"], ShouldEqual, "ana")
				So(top[0].(map[string]any)["position"], ShouldEqual, 1)
				So(body["currentUser"].(map[string]any)["position"], ShouldEqual, 2)
				So(body["currentUser"].(map[string]any)["isCurrentUser"], ShouldEqual, true)
				So(body, ShouldNotContainKey, "message")
			})
		})

		Convey("When only one player completes every level", func() {
			for level := 1; level <= 4; level++ {
				So(do(h, http.MethodPost, "/records", recordBody(a.User.ID, level, "medium", 10, 0), a.AccessToken).Code, ShouldEqual, http.StatusCreated)
			}
			for level := 1; level <= 3; level++ {
				So(do(h, http.MethodPost, "/records", recordBody(b.User.ID, level, "medium", 1, 0), b.AccessToken).Code, ShouldEqual, http.StatusCreated)
			}
			w := do(h, http.MethodGet, "/ranking/medium", "", b.AccessToken)

			Convey("Then only that player is globally ranked", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				body := decode(w)
				top := body["top3"].([]any)
				So(top, ShouldHaveLength, 1)
				So(top[0].(map[string]any)["time"], ShouldEqual, 40)
				So(top[0].(map[string]any)["levelsCompleted"], ShouldEqual, 4)
				So(body["currentUser"], ShouldBeNil)
				So(body["totalPlayers"], ShouldEqual, 1)
			})
		})

		Convey("When parameters are invalid", func() {
			So(do(h, http.MethodGet, "/ranking/Easy/1", "", a.AccessToken).Code, ShouldEqual, http.StatusBadRequest)
			So(do(h, http.MethodGet, "/ranking/easy/0", "", a.AccessToken).Code, ShouldEqual, http.StatusBadRequest)
			So(do(h, http.MethodGet, "/ranking/easy/one", "", a.AccessToken).Code, ShouldEqual, http.StatusBadRequest)
			So(do(h, http.MethodGet, "/ranking/expert", "", a.AccessToken).Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

// failingDeps authenticates everyone and fails every store-backed call.
type failingDeps struct{}

var errDown = model.E("store", model.ErrStoreUnavailable, errors.New("connection refused"))

func (failingDeps) SubmitRun(context.Context, string, model.RunSubmission) (service.SubmitResult, error) {
	return service.SubmitResult{}, errDown
}

func (failingDeps) LevelRanking(context.Context, string, int, string) (model.LevelRankingView, error) {
	return model.LevelRankingView{}, errDown
}

func (failingDeps) GlobalRanking(context.Context, string, string) (model.GlobalRankingView, error) {
	return model.GlobalRankingView{}, errDown
}

func (failingDeps) Register(context.Context, string, string) (model.Player, auth.Tokens, error) {
	return model.Player{}, auth.Tokens{}, errDown
}

func (failingDeps) Login(context.Context, string, string) (model.Player, auth.Tokens, error) {
	return model.Player{}, auth.Tokens{}, errDown
}

func (failingDeps) Logout(context.Context, string) error { return errDown }

func (failingDeps) Refresh(context.Context, string) (auth.Tokens, error) {
	return auth.Tokens{}, errDown
}

func (failingDeps) Authenticate(context.Context, string) (string, error) { return "p1", nil }

func (failingDeps) Me(context.Context, string) (model.Player, error) { return model.Player{}, errDown }

func (failingDeps) ValidateSQL(context.Context, sandbox.Exercise, string) (sandbox.Result, error) {
	return sandbox.Result{}, errDown
}

type staticStats map[string]interface{}

func (s staticStats) GetStats() map[string]interface{} { return s }

func TestStoreFailures(t *testing.T) {
	Convey("Given dependencies whose store is down", t, func() {
		h := buildHandler(failingDeps{}, staticStats{"started": true})

		Convey("Then rankings fail with 500 rather than an empty view", func() {
			for _, path := range []string{"/ranking/easy/1", "/ranking/easy"} {
				w := do(h, http.MethodGet, path, "", "token")
				So(w.Code, ShouldEqual, http.StatusInternalServerError)
				So(decode(w)["code"], ShouldEqual, "internal_error")
				So(w.Body.String(), ShouldNotContainSubstring, "connection refused")
			}
		})

		Convey("Then a submission fails with 500", func() {
			w := do(h, http.MethodPost, "/records", recordBody("p1", 1, "easy", 5, 0), "token")
			So(w.Code, ShouldEqual, http.StatusInternalServerError)
		})

		Convey("Then the SQL validator reports 503", func() {
			w := do(h, http.MethodPost, "/api/validate-sql", `{"exercise":"3.1","query":"select 1"}`, "")
			So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
		})

		Convey("Then /stats still answers", func() {
			w := do(h, http.MethodGet, "/stats", "", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decode(w)["started"], ShouldEqual, true)
		})
	})
}

func TestOperationalEndpoints(t *testing.T) {
	Convey("Given the API over a fresh service", t, func() {
		h, svc := newHandler()
		defer svc.Stop()

		Convey("When the SQL validator is asked about a schema exercise", func() {
			w := do(h, http.MethodPost, "/api/validate-sql", `{"exercise":1.1,"query":"CREATE DATABASE tienda;"}`, "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decode(w)["msg"], ShouldEqual, "success")

			w = do(h, http.MethodPost, "/api/validate-sql", `{"exercise":"1.2","query":"show tables"}`, "")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(decode(w)["msg"], ShouldEqual, "error")
		})

		Convey("When the SQL validator gets no query", func() {
			w := do(h, http.MethodPost, "/api/validate-sql", `{"exercise":"1.1"}`, "")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When a data exercise arrives without a sandbox database", func() {
			w := do(h, http.MethodPost, "/api/validate-sql", `{"exercise":"3.1","query":"select 1"}`, "")
			So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
		})

		Convey("When scraping metrics", func() {
			do(h, http.MethodGet, "/stats", "", "")
			w := do(h, http.MethodGet, "/healthz", "", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "unravel_game_")
		})

		Convey("When reading stats", func() {
			w := do(h, http.MethodGet, "/stats", "", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decode(w)["started"], ShouldEqual, true)
		})

		Convey("When a route does not exist", func() {
			w := do(h, http.MethodGet, "/leaderboard", "", "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
			So(decode(w)["code"], ShouldEqual, "not_found")
		})
	})
}

func TestCORS(t *testing.T) {
	Convey("Given the API handler", t, func() {
		h, svc := newHandler()
		defer svc.Stop()

		preflight := func(origin string) *httptest.ResponseRecorder {
			req := httptest.NewRequest(http.MethodOptions, "/records", http.NoBody)
			req.Header.Set("Origin", origin)
			req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			return w
		}

		Convey("When an allowed origin sends a preflight", func() {
			w := preflight(testOrigin)
			So(w.Header().Get("Access-Control-Allow-Origin"), ShouldEqual, testOrigin)
			So(w.Header().Get("Access-Control-Allow-Credentials"), ShouldEqual, "true")
		})

		Convey("When an unknown origin sends a preflight", func() {
			w := preflight("http://evil.example")
			So(w.Header().Get("Access-Control-Allow-Origin"), ShouldBeEmpty)
		})
	})
}
