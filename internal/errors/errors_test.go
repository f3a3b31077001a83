package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestInkError_Error(t *testing.T) {
	tests := []struct {
		name    string
		err     *InkError
		wantMsg string
	}{
		{
			name:    "without cause",
			err:     New(KindGeneral, ExitGeneralError, "something went wrong"),
			wantMsg: "something went wrong",
		},
		{
			name:    "with cause",
			err:     Wrap(KindGeneral, ExitGeneralError, "operation failed", fmt.Errorf("underlying error")),
			wantMsg: "operation failed: underlying error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", got, tt.wantMsg)
			}
		})
	}
}

func TestInkError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("root cause")
	err := Wrap(KindGeneral, ExitGeneralError, "wrapped", cause)

	if unwrapped := err.Unwrap(); unwrapped != cause {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, cause)
	}

	errNoCause := New(KindGeneral, ExitGeneralError, "no cause")
	if unwrapped := errNoCause.Unwrap(); unwrapped != nil {
		t.Errorf("Unwrap() = %v, want nil", unwrapped)
	}
}

func TestConstructors(t *testing.T) {
	cause := fmt.Errorf("boom")
	tests := []struct {
		name       string
		err        *InkError
		wantKind   Kind
		wantCode   int
		wantStatus int
	}{
		{"configuration", ConfigurationError("no image", nil), KindConfiguration, ExitConfigError, http.StatusInternalServerError},
		{"capacity", CapacityError("platform full"), KindCapacity, ExitCapacity, http.StatusBadRequest},
		{"runtime", RuntimeUnavailable("list", cause), KindRuntimeUnavailable, ExitRuntimeUnavailable, http.StatusInternalServerError},
		{"port discovery", PortDiscoveryTimeout("squittal-a-b", 5), KindPortDiscoveryTimeout, ExitPortDiscovery, http.StatusInternalServerError},
		{"proxy", ProxyUpstreamError(cause), KindProxyUpstream, ExitProxyError, http.StatusInternalServerError},
		{"handshake", HandshakeError("upgrade failed", cause), KindHandshake, ExitProxyError, http.StatusInternalServerError},
		{"dial timeout", DialTimeout("ws://127.0.0.1:1", cause), KindDialTimeout, ExitProxyError, http.StatusInternalServerError},
		{"not found", InstanceNotFound("a-b"), KindNotFound, ExitInstanceNotFound, http.StatusNotFound},
		{"unauthenticated", Unauthenticated(), KindUnauthenticated, ExitUnauthenticated, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Kind != tt.wantKind {
				t.Errorf("Kind = %q, want %q", tt.err.Kind, tt.wantKind)
			}
			if tt.err.Code != tt.wantCode {
				t.Errorf("Code = %d, want %d", tt.err.Code, tt.wantCode)
			}
			if got := tt.err.HTTPStatus(); got != tt.wantStatus {
				t.Errorf("HTTPStatus() = %d, want %d", got, tt.wantStatus)
			}
		})
	}
}

func TestPortDiscoveryTimeout_Message(t *testing.T) {
	err := PortDiscoveryTimeout("squittal-brave-otter", 5)
	want := "failed to get port of container squittal-brave-otter after 5 tries"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestIsKind_Wrapped(t *testing.T) {
	err := fmt.Errorf("outer: %w", CapacityError("already running max instances"))

	if !IsKind(err, KindCapacity) {
		t.Error("IsKind(wrapped capacity, KindCapacity) = false, want true")
	}
	if IsKind(err, KindConfiguration) {
		t.Error("IsKind(wrapped capacity, KindConfiguration) = true, want false")
	}
	if got := KindOf(err); got != KindCapacity {
		t.Errorf("KindOf() = %q, want %q", got, KindCapacity)
	}
	if got := HTTPStatus(err); got != http.StatusBadRequest {
		t.Errorf("HTTPStatus() = %d, want %d", got, http.StatusBadRequest)
	}
}

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"ink error", InstanceNotFound("x"), ExitInstanceNotFound},
		{"wrapped ink error", fmt.Errorf("ctx: %w", ConfigurationError("bad", nil)), ExitConfigError},
		{"plain error", errors.New("plain"), ExitGeneralError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetExitCode(tt.err); got != tt.want {
				t.Errorf("GetExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestHTTPStatus_PlainError(t *testing.T) {
	if got := HTTPStatus(errors.New("x")); got != http.StatusInternalServerError {
		t.Errorf("HTTPStatus() = %d, want 500", got)
	}
	if got := KindOf(errors.New("x")); got != KindGeneral {
		t.Errorf("KindOf() = %q, want %q", got, KindGeneral)
	}
}

func TestAs(t *testing.T) {
	err := fmt.Errorf("wrap: %w", DialTimeout("ws://x", nil))

	var inkErr *InkError
	if !As(err, &inkErr) {
		t.Fatal("As() = false, want true")
	}
	if inkErr.Kind != KindDialTimeout {
		t.Errorf("Kind = %q, want %q", inkErr.Kind, KindDialTimeout)
	}
	if !Is(err, inkErr) {
		t.Error("Is() = false, want true")
	}
}
