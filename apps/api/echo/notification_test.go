package echoapi_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	. "github.com/lamiedu/taarifa/apps/api/echo"
	"github.com/lamiedu/taarifa/core/notification"
)

func createNotification(t *testing.T, env testEnv, rcpt notification.Recipient, title string, at time.Time, read bool) notification.Notification {
	t.Helper()
	n, err := env.repo.Insert(context.Background(), notification.Notification{
		RecipientRole: rcpt.Role,
		RecipientID:   rcpt.ID,
		Title:         title,
		Message:       title + " body",
		IsRead:        read,
		CreatedAt:     at,
	})
	if err != nil {
		t.Fatalf("createNotification() failed: %v", err)
	}
	return n
}

func Test_notificationApi_list(t *testing.T) {
	env := setup(t)

	student := notification.Recipient{Role: notification.RoleStudent, ID: 7}
	mentor := notification.Recipient{Role: notification.RoleMentor, ID: 7}
	studentToken := getToken(t, env.conf, student)

	now := time.Now().UTC().Truncate(time.Second)
	old := createNotification(t, env, student, "old", now.Add(-2*time.Hour), true)
	tie1 := createNotification(t, env, student, "tie1", now.Add(-time.Hour), false)
	tie2 := createNotification(t, env, student, "tie2", now.Add(-time.Hour), false)
	fresh := createNotification(t, env, student, "fresh", now, false)
	createNotification(t, env, mentor, "not yours", now, false)

	env.run(t, []httpTest{
		{
			name: "Auth required", path: "/v1/notifications",
			wantCode: http.StatusUnauthorized, wantData: marshallObj(t, errMissingToken),
		},
		{
			name: "Newest first, id breaks ties", path: "/v1/notifications", token: studentToken,
			wantCode: http.StatusOK, wantData: successData(t, []notification.Notification{fresh, tie2, tie1, old}),
		},
		{
			name: "Scope params accepted when they match", token: studentToken,
			path:     "/v1/notifications?role=student&recipientId=7",
			wantCode: http.StatusOK, wantData: successData(t, []notification.Notification{fresh, tie2, tie1, old}),
		},
		{
			name: "Foreign role param rejected", token: studentToken,
			path:     "/v1/notifications?role=mentor&recipientId=7",
			wantCode: http.StatusForbidden,
			wantData: marshallObj(t, errResponse{Message: "role does not match the authenticated recipient"}),
		},
		{
			name: "Foreign recipientId param rejected", token: studentToken,
			path:     "/v1/notifications?recipientId=8",
			wantCode: http.StatusForbidden,
			wantData: marshallObj(t, errResponse{Message: "recipientId does not match the authenticated recipient"}),
		},
		{
			name: "No notifications yet", token: getToken(t, env.conf, notification.Recipient{Role: notification.RoleCompany, ID: 1}),
			path:     "/v1/notifications",
			wantCode: http.StatusOK, wantData: successData(t, []notification.Notification{}),
		},
	})
}

func Test_notificationApi_count(t *testing.T) {
	env := setup(t)

	student := notification.Recipient{Role: notification.RoleStudent, ID: 3}
	now := time.Now().UTC()
	createNotification(t, env, student, "n1", now, false)
	createNotification(t, env, student, "n2", now, false)
	createNotification(t, env, student, "n3", now, true)

	env.run(t, []httpTest{
		{
			name: "Auth required", path: "/v1/notifications/count",
			wantCode: http.StatusUnauthorized, wantData: marshallObj(t, errMissingToken),
		},
		{
			name: "Only unread counted", path: "/v1/notifications/count", token: getToken(t, env.conf, student),
			wantCode: http.StatusOK, wantData: successData(t, CountData{Total: 2}),
		},
		{
			name: "Zero for a fresh recipient", path: "/v1/notifications/count",
			token:    getToken(t, env.conf, notification.Recipient{Role: notification.RoleCompany, ID: 9}),
			wantCode: http.StatusOK, wantData: successData(t, CountData{Total: 0}),
		},
	})
}

func Test_notificationApi_create(t *testing.T) {
	env := setup(t)

	admin := notification.Recipient{Role: notification.RoleAdmin, ID: 1}
	student := notification.Recipient{Role: notification.RoleStudent, ID: 2}
	adminToken := getToken(t, env.conf, admin)

	env.run(t, []httpTest{
		{
			name: "Auth required", method: http.MethodPost, path: "/v1/notifications",
			body:     marshallObj(t, notification.NewNotification{RecipientRole: notification.RoleStudent, RecipientID: 2, Title: "t", Message: "m"}),
			wantCode: http.StatusUnauthorized, wantData: marshallObj(t, errMissingToken),
		},
		{
			name: "Admin required", method: http.MethodPost, path: "/v1/notifications",
			token:    getToken(t, env.conf, student),
			body:     marshallObj(t, notification.NewNotification{RecipientRole: notification.RoleStudent, RecipientID: 2, Title: "t", Message: "m"}),
			wantCode: http.StatusForbidden, wantData: marshallObj(t, errResponse{Message: "permission denied"}),
		},
		{
			name: "Empty payload rejected", method: http.MethodPost, path: "/v1/notifications",
			token: adminToken, body: []byte("{}"),
			wantCode: http.StatusBadRequest,
			wantData: marshallObj(t, errResponse{Message: map[string]string{
				"recipientRole": "this field is required",
				"recipientId":   "this field is required",
				"title":         "this field is required",
				"message":       "this field is required",
			}}),
		},
		{
			name: "Unknown role rejected", method: http.MethodPost, path: "/v1/notifications",
			token:    adminToken,
			body:     marshallObj(t, notification.NewNotification{RecipientRole: "teacher", RecipientID: 2, Title: "t", Message: "m"}),
			wantCode: http.StatusBadRequest,
			wantData: marshallObj(t, errResponse{Message: map[string]string{"recipientRole": "unknown recipient role"}}),
		},
		{
			name: "Bad email rejected", method: http.MethodPost, path: "/v1/notifications",
			token:    adminToken,
			body:     marshallObj(t, notification.NewNotification{RecipientRole: notification.RoleStudent, RecipientID: 2, Title: "t", Message: "m", Email: "nope"}),
			wantCode: http.StatusBadRequest,
			wantData: marshallObj(t, errResponse{Message: map[string]string{"email": "email must be a valid email address"}}),
		},
	})

	t.Run("Created notification is returned unread", func(t *testing.T) {
		body := marshallObj(t, notification.NewNotification{
			RecipientRole: notification.RoleStudent,
			RecipientID:   2,
			Title:         "  Session booked  ",
			Message:       "Your mentor confirmed.",
		})
		req, rec := newAuthRequest(http.MethodPost, "/v1/notifications", adminToken, body)
		env.srv.ServeHTTP(rec, req)

		if rec.Code != http.StatusCreated {
			t.Fatalf("code = %v; want %v; body %s", rec.Code, http.StatusCreated, rec.Body.String())
		}
		notifs, err := env.svc.List(context.Background(), student)
		if err != nil {
			t.Fatalf("List() failed: %v", err)
		}
		if len(notifs) != 1 {
			t.Fatalf("len(notifs) = %d; want 1", len(notifs))
		}
		n := notifs[0]
		if n.Title != "Session booked" || n.IsRead || n.ID == 0 || n.CreatedAt.IsZero() {
			t.Errorf("unexpected notification: %+v", n)
		}
		tt := httpTest{wantCode: http.StatusCreated, wantData: successData(t, n)}
		checkCodeAndData(t, tt, rec)
	})
}

func Test_notificationApi_markRead(t *testing.T) {
	env := setup(t)

	student := notification.Recipient{Role: notification.RoleStudent, ID: 5}
	mentor := notification.Recipient{Role: notification.RoleMentor, ID: 6}
	studentToken := getToken(t, env.conf, student)

	now := time.Now().UTC()
	mine := createNotification(t, env, student, "mine", now, false)
	theirs := createNotification(t, env, mentor, "theirs", now, false)

	ok := marshallObj(t, SuccessResponse{Success: true})

	env.run(t, []httpTest{
		{
			name: "Auth required", method: http.MethodPatch, path: "/v1/notifications/1/read",
			wantCode: http.StatusUnauthorized, wantData: marshallObj(t, errMissingToken),
		},
		{
			name: "Marks own notification", method: http.MethodPatch, token: studentToken,
			path:     "/v1/notifications/" + itoa(mine.ID) + "/read",
			wantCode: http.StatusOK, wantData: ok,
		},
		{
			name: "Already read is still success", method: http.MethodPatch, token: studentToken,
			path:     "/v1/notifications/" + itoa(mine.ID) + "/read",
			wantCode: http.StatusOK, wantData: ok,
		},
		{
			name: "Missing id is still success", method: http.MethodPatch, token: studentToken,
			path:     "/v1/notifications/999/read",
			wantCode: http.StatusOK, wantData: ok,
		},
		{
			name: "Cannot mark another recipient's", method: http.MethodPatch, token: studentToken,
			path:     "/v1/notifications/" + itoa(theirs.ID) + "/read",
			wantCode: http.StatusForbidden,
			wantData: marshallObj(t, errResponse{Message: "notification is addressed to another recipient"}),
		},
		{
			name: "Garbage id rejected", method: http.MethodPatch, token: studentToken,
			path:     "/v1/notifications/abc/read",
			wantCode: http.StatusBadRequest,
			wantData: marshallObj(t, errResponse{Message: map[string]string{"id": "must be a positive integer"}}),
		},
	})

	count, err := env.svc.CountUnread(context.Background(), mentor)
	if err != nil {
		t.Fatalf("CountUnread() failed: %v", err)
	}
	if count != 1 {
		t.Errorf("mentor unread count = %d; want 1", count)
	}
}

func Test_notificationApi_markAllRead(t *testing.T) {
	env := setup(t)

	student := notification.Recipient{Role: notification.RoleStudent, ID: 4}
	now := time.Now().UTC()
	createNotification(t, env, student, "n1", now, false)
	createNotification(t, env, student, "n2", now, false)
	createNotification(t, env, student, "n3", now, true)
	token := getToken(t, env.conf, student)

	env.run(t, []httpTest{
		{
			name: "Auth required", method: http.MethodPatch, path: "/v1/notifications/read-all",
			wantCode: http.StatusUnauthorized, wantData: marshallObj(t, errMissingToken),
		},
		{
			name: "Marks all unread", method: http.MethodPatch, path: "/v1/notifications/read-all", token: token,
			wantCode: http.StatusOK, wantData: successData(t, MarkAllData{Count: 2}),
		},
		{
			name: "Second pass touches nothing", method: http.MethodPatch, path: "/v1/notifications/read-all", token: token,
			wantCode: http.StatusOK, wantData: successData(t, MarkAllData{Count: 0}),
		},
		{
			name: "Count drops to zero", path: "/v1/notifications/count", token: token,
			wantCode: http.StatusOK, wantData: successData(t, CountData{Total: 0}),
		},
	})
}

func Test_notificationApi_delete(t *testing.T) {
	env := setup(t)

	student := notification.Recipient{Role: notification.RoleStudent, ID: 8}
	mentor := notification.Recipient{Role: notification.RoleMentor, ID: 8}
	studentToken := getToken(t, env.conf, student)

	now := time.Now().UTC()
	mine := createNotification(t, env, student, "mine", now, false)
	theirs := createNotification(t, env, mentor, "theirs", now, false)

	ok := marshallObj(t, SuccessResponse{Success: true})

	env.run(t, []httpTest{
		{
			name: "Auth required", method: http.MethodDelete, path: "/v1/notifications/1",
			wantCode: http.StatusUnauthorized, wantData: marshallObj(t, errMissingToken),
		},
		{
			name: "Deletes own notification", method: http.MethodDelete, token: studentToken,
			path:     "/v1/notifications/" + itoa(mine.ID),
			wantCode: http.StatusOK, wantData: ok,
		},
		{
			name: "Deleting again is still success", method: http.MethodDelete, token: studentToken,
			path:     "/v1/notifications/" + itoa(mine.ID),
			wantCode: http.StatusOK, wantData: ok,
		},
		{
			name: "Cannot delete another recipient's", method: http.MethodDelete, token: studentToken,
			path:     "/v1/notifications/" + itoa(theirs.ID),
			wantCode: http.StatusForbidden,
			wantData: marshallObj(t, errResponse{Message: "notification is addressed to another recipient"}),
		},
		{
			name: "List no longer contains it", path: "/v1/notifications", token: studentToken,
			wantCode: http.StatusOK, wantData: successData(t, []notification.Notification{}),
		},
	})
}
