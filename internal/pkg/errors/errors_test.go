package errors

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		want string
	}{
		{
			name: "without wrapped error",
			err:  New(CodeValidation, "query cannot be empty"),
			want: "VALIDATION_ERROR: query cannot be empty",
		},
		{
			name: "with wrapped error",
			err:  Wrap(CodeStoreError, "failed to record execution", errors.New("database is locked")),
			want: "STORE_ERROR: failed to record execution: database is locked",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	underlying := errors.New("connection refused")
	err := VectorStoreError("search failed", underlying)

	if !errors.Is(err, underlying) {
		t.Errorf("errors.Is() = false, want wrapped error to be reachable")
	}
}

func TestAppError_HTTPStatus(t *testing.T) {
	tests := []struct {
		code   string
		status int
	}{
		{CodeValidation, http.StatusBadRequest},
		{CodeInvalidRequest, http.StatusBadRequest},
		{CodeNotFound, http.StatusNotFound},
		{CodeRateLimited, http.StatusTooManyRequests},
		{CodeUnavailable, http.StatusServiceUnavailable},
		{CodeStoreError, http.StatusServiceUnavailable},
		{CodeTimeout, http.StatusGatewayTimeout},
		{CodeInternal, http.StatusInternalServerError},
		{CodeLLMError, http.StatusInternalServerError},
		{CodeVectorError, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "test")
			if status := err.HTTPStatus(); status != tt.status {
				t.Errorf("HTTPStatus() = %d, want %d", status, tt.status)
			}
		})
	}
}

func TestAppError_WithDetail(t *testing.T) {
	err := ValidationError("invalid request").
		WithDetail("field", "top_k").
		WithDetail("constraint", "must be between 1 and 100")

	if err.Details["field"] != "top_k" {
		t.Errorf("Details[field] = %s, want top_k", err.Details["field"])
	}
	if err.Details["constraint"] != "must be between 1 and 100" {
		t.Errorf("Details[constraint] = %s", err.Details["constraint"])
	}
}

func TestConvenienceConstructors(t *testing.T) {
	t.Run("NotFoundError", func(t *testing.T) {
		err := NotFoundError("execution")
		if err.Code != CodeNotFound {
			t.Errorf("Code = %s, want %s", err.Code, CodeNotFound)
		}
		if err.Message != "execution not found" {
			t.Errorf("Message = %s, want 'execution not found'", err.Message)
		}
	})

	t.Run("LLMError", func(t *testing.T) {
		err := LLMError("generation failed", errors.New("quota exceeded"))
		if err.Code != CodeLLMError {
			t.Errorf("Code = %s, want %s", err.Code, CodeLLMError)
		}
	})

	t.Run("RateLimitedError", func(t *testing.T) {
		err := RateLimitedError(30)
		if err.Code != CodeRateLimited {
			t.Errorf("Code = %s, want %s", err.Code, CodeRateLimited)
		}
		if err.Details["retry_after"] != "30" {
			t.Errorf("Details[retry_after] = %s, want 30", err.Details["retry_after"])
		}
	})

	t.Run("RateLimitedError_NoRetryAfter", func(t *testing.T) {
		err := RateLimitedError(0)
		if _, ok := err.Details["retry_after"]; ok {
			t.Error("retry_after detail should be omitted when zero")
		}
	})

	t.Run("TimeoutError", func(t *testing.T) {
		err := TimeoutError("technique run")
		if err.Code != CodeTimeout {
			t.Errorf("Code = %s, want %s", err.Code, CodeTimeout)
		}
		if err.Message != "technique run timed out" {
			t.Errorf("Message = %s", err.Message)
		}
	})

	t.Run("ServiceUnavailableError", func(t *testing.T) {
		err := ServiceUnavailableError("qdrant")
		if err.Code != CodeUnavailable {
			t.Errorf("Code = %s, want %s", err.Code, CodeUnavailable)
		}
		if err.Message != "qdrant is unavailable" {
			t.Errorf("Message = %s", err.Message)
		}
	})
}

func TestIsNotFound(t *testing.T) {
	if !IsNotFound(NotFoundError("document")) {
		t.Error("IsNotFound(NotFoundError) = false, want true")
	}
	if IsNotFound(ValidationError("bad")) {
		t.Error("IsNotFound(ValidationError) = true, want false")
	}
	if IsNotFound(errors.New("plain error")) {
		t.Error("IsNotFound(plain error) = true, want false")
	}
}

func TestIsValidation(t *testing.T) {
	if !IsValidation(ValidationError("bad")) {
		t.Error("IsValidation(ValidationError) = false, want true")
	}
	if IsValidation(NotFoundError("document")) {
		t.Error("IsValidation(NotFoundError) = true, want false")
	}
}

func TestWriteError_AppError(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, ValidationError("query cannot be empty"))

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}

	var resp ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Code != CodeValidation {
		t.Errorf("Code = %s, want %s", resp.Code, CodeValidation)
	}
	if resp.Error != "query cannot be empty" {
		t.Errorf("Error = %s", resp.Error)
	}
}

func TestWriteError_PlainErrorIsSanitized(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, errors.New("pq: connection to 10.1.2.3 failed"))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}

	var resp ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Error != "internal server error" {
		t.Errorf("Error = %s, internal details must not leak", resp.Error)
	}
}

func TestWriteErrorWithStatus_ClientError(t *testing.T) {
	w := httptest.NewRecorder()
	WriteErrorWithStatus(w, http.StatusNotFound, errors.New("no executions for technique"))

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}

	var resp ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Code != CodeNotFound {
		t.Errorf("Code = %s, want %s", resp.Code, CodeNotFound)
	}
	if resp.Error != "no executions for technique" {
		t.Errorf("Error = %s, 4xx messages are client-visible", resp.Error)
	}
}
