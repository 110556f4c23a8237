package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/okian/readcoach/internal/adapters/http/api"
	"github.com/okian/readcoach/internal/auth"
	"github.com/okian/readcoach/internal/domain/analytics"
	"github.com/okian/readcoach/internal/domain/model"
	"github.com/okian/readcoach/internal/domain/session"
	"github.com/okian/readcoach/internal/domain/srs"
	"github.com/okian/readcoach/internal/domain/types"
	"github.com/okian/readcoach/internal/domain/vocabulary"
	"github.com/okian/readcoach/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

// Mock implementation of the API dependencies.
type mockDeps struct {
	submitErr error
	gotUser   string
	gotAudio  string
	gotLimit  int
	gotTerm   string
}

func (m *mockDeps) Register(_ context.Context, username, _, _ string) (types.AuthResult, error) {
	if username == "taken" {
		return types.AuthResult{}, auth.ErrUserExists
	}
	return types.AuthResult{User: model.User{ID: "u1", Username: username}, Token: "good"}, nil
}

func (m *mockDeps) Login(_ context.Context, _, password string) (types.AuthResult, error) {
	if password != "pw" {
		return types.AuthResult{}, auth.ErrInvalidCredentials
	}
	return types.AuthResult{User: model.User{ID: "u1"}, Token: "good"}, nil
}

func (m *mockDeps) Authenticate(_ context.Context, token string) (string, error) {
	if token != "good" {
		return "", auth.ErrUnauthorized
	}
	return "u1", nil
}

func (m *mockDeps) view(userID, id string) (types.SessionView, error) {
	m.gotUser = userID
	if id != "s1" {
		return types.SessionView{}, session.ErrSessionNotFound
	}
	return types.SessionView{ID: id, Total: 3, Slots: []model.Slot{}, Vocabulary: []string{}}, nil
}

func (m *mockDeps) StartSession(_ context.Context, userID, passage string, n int) (types.SessionView, error) {
	m.gotUser = userID
	return types.SessionView{ID: "s1", Passage: passage, Total: max(n, 5)}, nil
}

func (m *mockDeps) Session(_ context.Context, userID, id string) (types.SessionView, error) {
	return m.view(userID, id)
}

func (m *mockDeps) Next(_ context.Context, userID, id string) (types.SessionView, error) {
	v, err := m.view(userID, id)
	v.Index = 1
	return v, err
}

func (m *mockDeps) Prev(_ context.Context, userID, id string) (types.SessionView, error) {
	return m.view(userID, id)
}

func (m *mockDeps) SubmitAnswer(_ context.Context, userID, id, answer string) (types.AnswerResult, error) {
	if m.submitErr != nil {
		return types.AnswerResult{}, m.submitErr
	}
	if strings.TrimSpace(answer) == "" {
		return types.AnswerResult{}, session.ErrEmptyAnswer
	}
	v, err := m.view(userID, id)
	if err != nil {
		return types.AnswerResult{}, err
	}
	return types.AnswerResult{Assessment: model.Assessment{Aggregate: 85, Band: model.BandProficient}, Session: v}, nil
}

func (m *mockDeps) Transcribe(_ context.Context, _, _ string, audio io.Reader, filename string) (string, error) {
	b, _ := io.ReadAll(audio)
	m.gotAudio = filename + ":" + string(b)
	if filename == "broken.wav" {
		return "", fmt.Errorf("%w: upstream", session.ErrTranscription)
	}
	return "spoken words", nil
}

func (m *mockDeps) ExtractVocabulary(_ context.Context, _, _ string, limit int) ([]model.VocabularyEntry, error) {
	m.gotLimit = limit
	return nil, nil
}

func (m *mockDeps) FinishSession(_ context.Context, userID, id string) (model.SessionRecord, error) {
	if _, err := m.view(userID, id); err != nil {
		return model.SessionRecord{}, err
	}
	return model.SessionRecord{ID: id, UserID: userID, Score: 80}, nil
}

func (m *mockDeps) History(context.Context, string) ([]model.SessionRecord, error) {
	return nil, nil
}

func (m *mockDeps) HistoryRecord(_ context.Context, _, id string) (model.SessionRecord, error) {
	if id != "s1" {
		return model.SessionRecord{}, session.ErrSessionNotFound
	}
	return model.SessionRecord{ID: id}, nil
}

func (m *mockDeps) Analytics(context.Context, string) (analytics.Analytics, error) {
	return analytics.New().Aggregate(nil, nil), nil
}

func (m *mockDeps) AddWord(_ context.Context, userID, term, definition, _ string) (model.VocabularyEntry, error) {
	if strings.TrimSpace(term) == "" {
		return model.VocabularyEntry{}, vocabulary.ErrInvalidTerm
	}
	return model.VocabularyEntry{UserID: userID, Term: strings.ToLower(term), Definition: definition, Frequency: 1}, nil
}

func (m *mockDeps) Vocabulary(context.Context, string) ([]model.VocabularyEntry, error) {
	return nil, nil
}

func (m *mockDeps) DueVocabulary(context.Context, string) (types.DueVocabulary, error) {
	return types.DueVocabulary{Entries: []model.VocabularyEntry{{Term: "lucid"}}, Count: 1}, nil
}

func (m *mockDeps) ReviewWord(_ context.Context, _, term, outcome string) (model.VocabularyEntry, error) {
	m.gotTerm = term
	if _, err := srs.ParseOutcome(outcome); err != nil {
		return model.VocabularyEntry{}, err
	}
	if term != "lucid" {
		return model.VocabularyEntry{}, vocabulary.ErrNotFound
	}
	return model.VocabularyEntry{Term: term, ReviewCount: 1, NextReviewAt: time.Now().Add(24 * time.Hour)}, nil
}

func (m *mockDeps) ArchiveWord(_ context.Context, _, term string) (model.VocabularyEntry, error) {
	m.gotTerm = term
	return model.VocabularyEntry{Term: term, Archived: true}, nil
}

type mockStats struct{}

func (mockStats) GetStats() map[string]interface{} {
	return map[string]interface{}{"started": true, "activeSessions": 2}
}

func newMux(deps *mockDeps, opts ...api.Option) *http.ServeMux {
	mux := http.NewServeMux()
	opts = append([]api.Option{api.WithLogger(logger.NewNop())}, opts...)
	api.NewServer(deps, mockStats{}, opts...).Register(context.Background(), mux)
	return mux
}

func do(mux http.Handler, method, path, body string, authed bool) *httptest.ResponseRecorder {
	var rdr io.Reader = http.NoBody
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		req.Header.Set("Authorization", "Bearer good")
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func decodeBody(w *httptest.ResponseRecorder) map[string]any {
	var out map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return out
}

func audioRequest(path, field, filename string, content []byte) *http.Request {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, _ := mw.CreateFormFile(field, filename)
	_, _ = part.Write(content)
	_ = mw.Close()
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer good")
	return req
}

func TestHealthAndStats(t *testing.T) {
	Convey("Given the API routes", t, func() {
		mux := newMux(&mockDeps{})

		Convey("When requesting /healthz as JSON", func() {
			w := do(mux, http.MethodGet, "/healthz", "", false)

			Convey("Then it reports ok", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(decodeBody(w)["status"], ShouldEqual, "ok")
			})
		})

		Convey("When requesting /healthz as text", func() {
			req := httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody)
			req.Header.Set("Accept", "text/plain")
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			Convey("Then it serves Prometheus metrics", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, "readcoach_practice_")
			})
		})

		Convey("When requesting /stats", func() {
			w := do(mux, http.MethodGet, "/stats", "", false)

			Convey("Then it returns the provider's stats", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(decodeBody(w)["activeSessions"], ShouldEqual, 2.0)
			})
		})
	})
}

func TestAuthRoutes(t *testing.T) {
	Convey("Given the API routes", t, func() {
		mux := newMux(&mockDeps{})

		Convey("When registering", func() {
			w := do(mux, http.MethodPost, "/v1/auth/register", `{"username":"ada","email":"a@b.c","password":"pw"}`, false)

			Convey("Then the user and token are returned", func() {
				So(w.Code, ShouldEqual, http.StatusCreated)
				So(decodeBody(w)["token"], ShouldEqual, "good")
			})
		})

		Convey("When registering a taken username", func() {
			w := do(mux, http.MethodPost, "/v1/auth/register", `{"username":"taken","email":"a@b.c","password":"pw"}`, false)

			Convey("Then it conflicts", func() {
				So(w.Code, ShouldEqual, http.StatusConflict)
				So(decodeBody(w)["code"], ShouldEqual, "user_exists")
			})
		})

		Convey("When the body is malformed", func() {
			w := do(mux, http.MethodPost, "/v1/auth/register", `{"username":`, false)

			Convey("Then it is a bad request", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When the body has unknown fields", func() {
			w := do(mux, http.MethodPost, "/v1/auth/login", `{"username":"ada","password":"pw","admin":true}`, false)

			Convey("Then it is a bad request", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When logging in with a wrong password", func() {
			w := do(mux, http.MethodPost, "/v1/auth/login", `{"username":"ada","password":"nope"}`, false)

			Convey("Then it is unauthorized", func() {
				So(w.Code, ShouldEqual, http.StatusUnauthorized)
				So(decodeBody(w)["code"], ShouldEqual, "invalid_credentials")
			})
		})

		Convey("When calling a protected route without a token", func() {
			w := do(mux, http.MethodGet, "/v1/history", "", false)

			Convey("Then it is unauthorized", func() {
				So(w.Code, ShouldEqual, http.StatusUnauthorized)
			})
		})

		Convey("When calling a protected route with a bad token", func() {
			req := httptest.NewRequest(http.MethodGet, "/v1/history", http.NoBody)
			req.Header.Set("Authorization", "Bearer forged")
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			Convey("Then it is unauthorized", func() {
				So(w.Code, ShouldEqual, http.StatusUnauthorized)
			})
		})
	})
}

func TestSessionRoutes(t *testing.T) {
	Convey("Given an authenticated client", t, func() {
		deps := &mockDeps{}
		mux := newMux(deps)

		Convey("When starting a session without a body", func() {
			w := do(mux, http.MethodPost, "/v1/sessions", "", true)

			Convey("Then it is created for the token's user", func() {
				So(w.Code, ShouldEqual, http.StatusCreated)
				So(decodeBody(w)["id"], ShouldEqual, "s1")
				So(deps.gotUser, ShouldEqual, "u1")
			})
		})

		Convey("When starting a session with a negative count", func() {
			w := do(mux, http.MethodPost, "/v1/sessions", `{"questions":-1}`, true)

			Convey("Then it is a bad request", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When starting a session with more questions than allowed", func() {
			w := do(mux, http.MethodPost, "/v1/sessions", `{"questions":21}`, true)

			Convey("Then it is rejected before reaching the service", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(decodeBody(w)["code"], ShouldEqual, "bad_request")
				So(deps.gotUser, ShouldBeEmpty)
			})
		})

		Convey("When moving to the next question", func() {
			w := do(mux, http.MethodPost, "/v1/sessions/s1/next", "", true)

			Convey("Then the new index is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(decodeBody(w)["index"], ShouldEqual, 1.0)
			})
		})

		Convey("When the session does not exist", func() {
			w := do(mux, http.MethodGet, "/v1/sessions/nope", "", true)

			Convey("Then it is not found", func() {
				So(w.Code, ShouldEqual, http.StatusNotFound)
				So(decodeBody(w)["code"], ShouldEqual, "session_not_found")
			})
		})

		Convey("When answering", func() {
			w := do(mux, http.MethodPost, "/v1/sessions/s1/answer", `{"answer":"It rained."}`, true)

			Convey("Then the assessment is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				a := decodeBody(w)["assessment"].(map[string]any)
				So(a["aggregate"], ShouldEqual, 85.0)
				So(a["band"], ShouldEqual, "proficient")
			})
		})

		Convey("When answering with blank text", func() {
			w := do(mux, http.MethodPost, "/v1/sessions/s1/answer", `{"answer":"  "}`, true)

			Convey("Then it is a bad request", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(decodeBody(w)["code"], ShouldEqual, "empty_answer")
			})
		})

		Convey("When assessment output cannot be parsed", func() {
			deps.submitErr = &session.AnswerError{
				Answer: "x",
				Err:    fmt.Errorf("%w: no scores", session.ErrGenerationParse),
			}
			w := do(mux, http.MethodPost, "/v1/sessions/s1/answer", `{"answer":"x"}`, true)

			Convey("Then a retryable upstream error echoes the answer", func() {
				So(w.Code, ShouldEqual, http.StatusBadGateway)
				body := decodeBody(w)
				So(body["retry"], ShouldEqual, true)
				So(body["code"], ShouldEqual, "generation_failed")
				So(body["answer"], ShouldEqual, "x")
			})
		})

		Convey("When extracting vocabulary with a limit", func() {
			w := do(mux, http.MethodPost, "/v1/sessions/s1/vocabulary", `{"limit":4}`, true)

			Convey("Then the limit is passed on and entries is an array", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.gotLimit, ShouldEqual, 4)
				So(w.Body.String(), ShouldContainSubstring, `"entries":[]`)
			})
		})

		Convey("When finishing", func() {
			w := do(mux, http.MethodPost, "/v1/sessions/s1/finish", "", true)

			Convey("Then the record is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(decodeBody(w)["score"], ShouldEqual, 80.0)
			})
		})

		Convey("When using the wrong method", func() {
			w := do(mux, http.MethodGet, "/v1/sessions/s1/finish", "", true)

			Convey("Then the mux rejects it", func() {
				So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
			})
		})
	})
}

func TestTranscribeRoute(t *testing.T) {
	Convey("Given an authenticated client", t, func() {
		deps := &mockDeps{}
		mux := newMux(deps, api.WithMaxAudioBytes(1024))

		Convey("When uploading a recording", func() {
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, audioRequest("/v1/sessions/s1/transcribe", "audio", "answer.webm", []byte("RIFF")))

			Convey("Then the text is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(decodeBody(w)["text"], ShouldEqual, "spoken words")
				So(deps.gotAudio, ShouldEqual, "answer.webm:RIFF")
			})
		})

		Convey("When uploading and submitting", func() {
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, audioRequest("/v1/sessions/s1/transcribe?submit=true", "audio", "answer.webm", []byte("RIFF")))

			Convey("Then the assessment is included", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				res := decodeBody(w)["result"].(map[string]any)
				So(res["assessment"], ShouldNotBeNil)
			})
		})

		Convey("When the recording is too large", func() {
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, audioRequest("/v1/sessions/s1/transcribe", "audio", "answer.webm", bytes.Repeat([]byte("a"), 4096)))

			Convey("Then it is rejected", func() {
				So(w.Code, ShouldEqual, http.StatusRequestEntityTooLarge)
			})
		})

		Convey("When the audio field is missing", func() {
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, audioRequest("/v1/sessions/s1/transcribe", "file", "answer.webm", []byte("RIFF")))

			Convey("Then it is a bad request", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When transcription fails", func() {
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, audioRequest("/v1/sessions/s1/transcribe", "audio", "broken.wav", []byte("RIFF")))

			Convey("Then the client is told to retry or type the answer", func() {
				So(w.Code, ShouldEqual, http.StatusBadGateway)
				So(decodeBody(w)["retry"], ShouldEqual, true)
			})
		})
	})
}

func TestVocabularyRoutes(t *testing.T) {
	Convey("Given an authenticated client", t, func() {
		deps := &mockDeps{}
		mux := newMux(deps)

		Convey("When adding a word", func() {
			w := do(mux, http.MethodPost, "/v1/vocabulary", `{"term":"Lucid","definition":"clear"}`, true)

			Convey("Then the entry is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(decodeBody(w)["term"], ShouldEqual, "lucid")
			})
		})

		Convey("When adding a blank word", func() {
			w := do(mux, http.MethodPost, "/v1/vocabulary", `{"term":" "}`, true)

			Convey("Then it is a bad request", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(decodeBody(w)["code"], ShouldEqual, "invalid_term")
			})
		})

		Convey("When listing words", func() {
			w := do(mux, http.MethodGet, "/v1/vocabulary", "", true)

			Convey("Then entries is an empty array", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, `"entries":[]`)
			})
		})

		Convey("When listing due words", func() {
			w := do(mux, http.MethodGet, "/v1/vocabulary/due", "", true)

			Convey("Then the due entries are returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(decodeBody(w)["count"], ShouldEqual, 1.0)
			})
		})

		Convey("When reviewing a phrase with a space", func() {
			w := do(mux, http.MethodPost, "/v1/vocabulary/lucid/review", `{"outcome":"good"}`, true)
			w2 := do(mux, http.MethodDelete, "/v1/vocabulary/take%20off", "", true)

			Convey("Then the path term is decoded", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w2.Code, ShouldEqual, http.StatusOK)
				So(deps.gotTerm, ShouldEqual, "take off")
			})
		})

		Convey("When reviewing with an unknown outcome", func() {
			w := do(mux, http.MethodPost, "/v1/vocabulary/lucid/review", `{"outcome":"meh"}`, true)

			Convey("Then it is a bad request", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(decodeBody(w)["code"], ShouldEqual, "unknown_outcome")
			})
		})

		Convey("When reviewing an unknown word", func() {
			w := do(mux, http.MethodPost, "/v1/vocabulary/zebra/review", `{"outcome":"easy"}`, true)

			Convey("Then it is not found", func() {
				So(w.Code, ShouldEqual, http.StatusNotFound)
			})
		})
	})
}

func TestProgressRoutes(t *testing.T) {
	Convey("Given an authenticated client", t, func() {
		mux := newMux(&mockDeps{})

		Convey("When listing history", func() {
			w := do(mux, http.MethodGet, "/v1/history", "", true)

			Convey("Then sessions is an empty array", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, `"sessions":[]`)
			})
		})

		Convey("When fetching a missing record", func() {
			w := do(mux, http.MethodGet, "/v1/history/nope", "", true)

			Convey("Then it is not found", func() {
				So(w.Code, ShouldEqual, http.StatusNotFound)
			})
		})

		Convey("When fetching analytics", func() {
			w := do(mux, http.MethodGet, "/v1/analytics", "", true)

			Convey("Then an empty history reports no data", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				overall := decodeBody(w)["overall"].(map[string]any)
				So(overall["direction"], ShouldEqual, "no_data")
			})
		})
	})
}
