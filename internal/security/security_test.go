package security

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/kaoqin/kaoqin/pkg/model"
)

func TestHashPassword(t *testing.T) {
	password := "secret123"
	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}

	if hash == "" {
		t.Error("Hash should not be empty")
	}
	if hash == password {
		t.Error("Hash should not equal password")
	}
	if !strings.HasPrefix(hash, "v1$") {
		t.Errorf("Hash should carry version prefix, got %s", hash)
	}
	if len(strings.Split(hash, "$")) != 4 {
		t.Errorf("Hash should have 4 segments, got %s", hash)
	}

	// 盐值随机，两次哈希应不同
	hash2, _ := HashPassword(password)
	if hash == hash2 {
		t.Error("Salted hashes should differ between calls")
	}
}

func TestHashPassword_TooShort(t *testing.T) {
	if _, err := HashPassword("short"); err != ErrPasswordTooShort {
		t.Errorf("Expected ErrPasswordTooShort, got: %v", err)
	}
}

func TestVerifyPassword(t *testing.T) {
	password := "secret123"
	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}

	if !VerifyPassword(password, hash) {
		t.Error("Correct password should verify")
	}
	if VerifyPassword("wrong", hash) {
		t.Error("Wrong password should not verify")
	}
	if VerifyPassword(password, "v0$180000$bad$hash") {
		t.Error("Unknown version should not verify")
	}
	if VerifyPassword(password, "garbage") {
		t.Error("Malformed hash should not verify")
	}
}

func TestTokenManager_GenerateAndParse(t *testing.T) {
	manager := NewTokenManager("test-secret", time.Hour, "kaoqin")

	emp := &model.Employee{
		Name: "张伟",
		Role: "staff",
	}
	emp.ID = uuid.New()
	emp.OrgID = uuid.New()

	token, err := manager.Generate(emp)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if token == "" {
		t.Fatal("Token should not be empty")
	}

	claims, err := manager.Parse(token)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if claims.Subject != emp.ID.String() {
		t.Errorf("Subject = %s, expected %s", claims.Subject, emp.ID)
	}
	if claims.OrgID != emp.OrgID.String() {
		t.Errorf("OrgID = %s, expected %s", claims.OrgID, emp.OrgID)
	}
	if claims.Role != "staff" {
		t.Errorf("Role = %s, expected staff", claims.Role)
	}

	empID, err := claims.EmployeeID()
	if err != nil || empID != emp.ID {
		t.Errorf("EmployeeID() = %v, %v", empID, err)
	}
}

func TestTokenManager_WrongSecret(t *testing.T) {
	manager := NewTokenManager("secret-a", time.Hour, "kaoqin")
	other := NewTokenManager("secret-b", time.Hour, "kaoqin")

	emp := &model.Employee{Name: "李娜", Role: "admin"}
	emp.ID = uuid.New()
	emp.OrgID = uuid.New()

	token, _ := manager.Generate(emp)
	if _, err := other.Parse(token); err != ErrInvalidToken {
		t.Errorf("Expected ErrInvalidToken with wrong secret, got: %v", err)
	}
}

func TestTokenManager_Expired(t *testing.T) {
	manager := NewTokenManager("test-secret", -time.Minute, "kaoqin")

	emp := &model.Employee{Name: "王强", Role: "staff"}
	emp.ID = uuid.New()
	emp.OrgID = uuid.New()

	token, _ := manager.Generate(emp)
	if _, err := manager.Parse(token); err != ErrExpiredToken {
		t.Errorf("Expected ErrExpiredToken, got: %v", err)
	}
}

func TestRateLimiter_Allow(t *testing.T) {
	limiter := NewRateLimiter(5, time.Second)

	// 前5次应该允许
	for i := 0; i < 5; i++ {
		if !limiter.Allow("client1") {
			t.Errorf("Request %d should be allowed", i+1)
		}
	}

	// 第6次应该拒绝
	if limiter.Allow("client1") {
		t.Error("Request 6 should be denied")
	}

	// 不同客户端应该允许
	if !limiter.Allow("client2") {
		t.Error("Different client should be allowed")
	}
}

func TestExtractToken(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(r *http.Request)
		expected string
	}{
		{
			name: "从Bearer提取",
			setup: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer test_token")
			},
			expected: "test_token",
		},
		{
			name: "从query参数提取",
			setup: func(r *http.Request) {
				q := r.URL.Query()
				q.Set("token", "query_token")
				r.URL.RawQuery = q.Encode()
			},
			expected: "query_token",
		},
		{
			name:     "无令牌",
			setup:    func(r *http.Request) {},
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/test", nil)
			tt.setup(req)

			result := ExtractToken(req)
			if result != tt.expected {
				t.Errorf("ExtractToken() = %v, expected %v", result, tt.expected)
			}
		})
	}
}

func TestSanitizeInput(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"  hello  ", "hello"},
		{"test--drop", "testdrop"},
		{"select;delete", "selectdelete"},
		{"normal text", "normal text"},
	}

	for _, tt := range tests {
		result := SanitizeInput(tt.input)
		if result != tt.expected {
			t.Errorf("SanitizeInput(%q) = %q, expected %q", tt.input, result, tt.expected)
		}
	}
}
