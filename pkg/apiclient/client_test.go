package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestLoginSendsFormAndStoresToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/login" {
			t.Errorf("неожиданный путь: %s", r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("ParseForm: %v", err)
		}
		if r.PostForm.Get("username") != "admin" || r.PostForm.Get("password") != "secret" {
			t.Errorf("неожиданные учётные данные: %v", r.PostForm)
		}
		if r.PostForm.Get("grant_type") != "password" {
			t.Errorf("grant_type=%q", r.PostForm.Get("grant_type"))
		}
		json.NewEncoder(w).Encode(TokenResponse{AccessToken: "jwt-token", TokenType: "bearer"})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	token, err := client.Login(context.Background(), "admin", "secret")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if token.AccessToken != "jwt-token" {
		t.Fatalf("неожиданный токен: %+v", token)
	}
	if client.token != "jwt-token" {
		t.Fatal("токен должен сохраняться в клиенте")
	}
}

func TestChangePasswordMismatchSendsNothing(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	err := client.ChangePassword(context.Background(), "old", "new-one", "new-two")
	if !errors.Is(err, ErrPasswordMismatch) {
		t.Fatalf("ожидался ErrPasswordMismatch, получено %v", err)
	}
	if err.Error() != "Пароли не совпадают" {
		t.Fatalf("неожиданное сообщение: %q", err.Error())
	}
	if requests != 0 {
		t.Fatalf("при несовпадении паролей запрос не отправляется, было %d", requests)
	}
}

func TestChangePasswordSendsSingleRequest(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if r.Method != http.MethodPost || r.URL.Path != "/users/me/password" {
			t.Errorf("неожиданный запрос: %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer jwt-token" {
			t.Errorf("неожиданный заголовок авторизации: %q", got)
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body["current_password"] != "old" || body["new_password"] != "brand-new" {
			t.Errorf("неожиданное тело: %v", body)
		}
		if _, ok := body["confirm_password"]; ok {
			t.Error("подтверждение пароля не должно уходить на сервер")
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	client.SetToken("jwt-token")
	if err := client.ChangePassword(context.Background(), "old", "brand-new", "brand-new"); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}
	if requests != 1 {
		t.Fatalf("ожидался ровно один запрос, было %d", requests)
	}
}

func TestChangePasswordShowsBackendDetail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"detail": "Неверный текущий пароль"})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	err := client.ChangePassword(context.Background(), "wrong", "new", "new")
	if err == nil {
		t.Fatal("ожидалась ошибка")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("ожидался APIError, получено %T", err)
	}
	if apiErr.Error() != "Неверный текущий пароль" {
		t.Fatalf("текст ошибки сервера должен показываться как есть: %q", apiErr.Error())
	}
}

func TestFetchDiffNotFoundIsNil(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"detail": "Дельта не найдена"})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	diff, err := client.FetchDiff(context.Background(), 1, 1)
	if err != nil {
		t.Fatalf("404 при запросе дельты не является ошибкой: %v", err)
	}
	if diff != nil {
		t.Fatalf("ожидался nil, получено %+v", diff)
	}
}

func TestListNodesPassesStatusFilter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/nomenclature/nodes" {
			t.Errorf("неожиданный запрос: %s %s", r.Method, r.URL.Path)
		}
		if got := r.URL.Query().Get("status"); got != "published" {
			t.Errorf("status=%q, ожидался published", got)
		}
		json.NewEncoder(w).Encode([]NomenclatureNode{
			{ID: 1, Code: "10", Name: "Электрооборудование", NodeType: "segment", Version: 3},
			{ID: 2, Code: "10.10", Name: "Трансформаторы", NodeType: "family", Depth: 1},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	nodes, err := client.ListNodes(context.Background(), "published")
	if err != nil {
		t.Fatalf("ListNodes: %v", err)
	}
	if len(nodes) != 2 || nodes[0].Code != "10" || nodes[1].Depth != 1 {
		t.Fatalf("неожиданный список узлов: %+v", nodes)
	}
}

func TestArchiveNodeReportsDetailOnConflict(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/nomenclature/nodes/5/archive" {
			t.Errorf("неожиданный запрос: %s %s", r.Method, r.URL.Path)
		}
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]string{"detail": "Нельзя архивировать узел с неархивными дочерними узлами"})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	err := client.ArchiveNode(context.Background(), 5)
	if err == nil {
		t.Fatal("ожидалась ошибка конфликта")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusConflict {
		t.Fatalf("ожидался APIError с кодом 409, получено %v", err)
	}
	if apiErr.Error() != "Нельзя архивировать узел с неархивными дочерними узлами" {
		t.Fatalf("текст detail должен показываться как есть: %q", apiErr.Error())
	}
}

func TestArchiveNodeSucceeds(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"detail": "Узел архивирован"})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	if err := client.ArchiveNode(context.Background(), 5); err != nil {
		t.Fatalf("ArchiveNode: %v", err)
	}
}

func TestCreateSchemaVersionSendsPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/nomenclature/nodes/7/schemas" {
			t.Errorf("неожиданный путь: %s", r.URL.Path)
		}
		var req CreateSchemaVersionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(req.Presets) != 2 || req.Comment != "черновик" {
			t.Errorf("неожиданное тело: %+v", req)
		}
		json.NewEncoder(w).Encode(SchemaVersion{NodeID: 7, Version: 4, Status: "draft", JSONSchema: req.JSONSchema})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	created, err := client.CreateSchemaVersion(context.Background(), 7, CreateSchemaVersionRequest{
		JSONSchema: map[string]any{"type": "object", "properties": map[string]any{}},
		Presets:    []int64{10, 20},
		Comment:    "черновик",
	})
	if err != nil {
		t.Fatalf("CreateSchemaVersion: %v", err)
	}
	if created.Version != 4 || created.Status != "draft" {
		t.Fatalf("неожиданный ответ: %+v", created)
	}
}
