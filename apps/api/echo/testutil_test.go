package echoapi_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strconv"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"

	. "github.com/lamiedu/taarifa/apps/api/echo"
	"github.com/lamiedu/taarifa/core"
	"github.com/lamiedu/taarifa/core/notification"
	"github.com/lamiedu/taarifa/storage/database/inmem"
)

var errMissingToken = errResponse{Message: "missing or malformed jwt"}

type testEnv struct {
	srv  Server
	conf *core.Config
	svc  *notification.Service
	repo notification.Repository
}

func setup(t *testing.T) testEnv {
	t.Helper()

	conf := &core.Config{
		AppName:   "Taarifa",
		TestMode:  true,
		SecretKey: "s3cr3t",
		Server:    core.ServerConfig{JWTExpirationDelta: time.Hour},
	}

	validate := validator.New()
	english := en.New()
	translator, _ := ut.New(english, english).GetTranslator("en")
	core.InitValidators(validate, translator)
	notification.InitValidators(validate, translator)

	repo := inmemdb.NewNotificationRepository(inmemdb.Open())
	svc := notification.NewService(repo, nil, nil, core.NopLogger{}, conf)

	srv := NewServer(ServerDeps{
		Conf:           conf,
		Logger:         core.NopLogger{},
		NotifSvc:       svc,
		Validate:       validate,
		Translator:     translator,
		DisableReqLogs: true,
	})
	return testEnv{srv: srv, conf: conf, svc: svc, repo: repo}
}

type errResponse struct {
	Success bool        `json:"success"`
	Message interface{} `json:"message"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func (env testEnv) run(t *testing.T, tests []httpTest) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method := tt.method
			if method == "" {
				method = http.MethodGet
			}
			req, rec := newAuthRequest(method, tt.path, tt.token, tt.body)
			env.srv.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func getToken(t *testing.T, conf *core.Config, rcpt notification.Recipient) string {
	t.Helper()
	token, err := GenerateToken(conf, GetRecipientClaims(conf, rcpt))
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func itoa(id int) string { return strconv.Itoa(id) }

func marshallObj(t *testing.T, obj interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshallObj() failed: %v", err)
	}
	return data
}

func successData(t *testing.T, data interface{}) []byte {
	return marshallObj(t, SuccessResponse{Success: true, Data: data})
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if j1 == nil || j2 == nil {
		return false, nil
	}
	return assert.ObjectsAreEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
