package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestNewArchError(t *testing.T) {
	cause := errors.New("permission denied")

	err := NewArchError(PersistenceFailed, "cannot write diagram", cause)

	if err.Code != PersistenceFailed {
		t.Errorf("Code = %v, want %v", err.Code, PersistenceFailed)
	}
	if err.Message != "cannot write diagram" {
		t.Errorf("Message = %q, want %q", err.Message, "cannot write diagram")
	}
	if len(err.SuggestedFixes) != 1 {
		t.Errorf("len(SuggestedFixes) = %d, want 1", len(err.SuggestedFixes))
	}
}

func TestArchError_Error(t *testing.T) {
	tests := []struct {
		name      string
		code      ErrorCode
		message   string
		cause     error
		wantParts []string
	}{
		{
			name:      "with cause",
			code:      ManifestMalformed,
			message:   "Web.csproj is not valid XML",
			cause:     errors.New("unexpected EOF"),
			wantParts: []string{"MANIFEST_MALFORMED", "Web.csproj is not valid XML", "unexpected EOF"},
		},
		{
			name:      "without cause",
			code:      ResolutionFailed,
			message:   "no manifests found",
			cause:     nil,
			wantParts: []string{"RESOLUTION_FAILED", "no manifests found"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewArchError(tt.code, tt.message, tt.cause)
			got := err.Error()

			for _, part := range tt.wantParts {
				if !strings.Contains(got, part) {
					t.Errorf("Error() = %q, want to contain %q", got, part)
				}
			}
		})
	}
}

func TestArchError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := NewArchError(InternalError, "something went wrong", cause)

	if unwrapped := err.Unwrap(); unwrapped != cause {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, cause)
	}

	errNoCause := NewArchError(RenderFailed, "no output", nil)
	if errNoCause.Unwrap() != nil {
		t.Errorf("Unwrap() on error without cause should return nil")
	}
}

func TestCodeOf(t *testing.T) {
	wrapped := fmt.Errorf("reading manifest: %w", NewArchError(ManifestUnreadable, "gone", nil))

	if got := CodeOf(wrapped); got != ManifestUnreadable {
		t.Errorf("CodeOf(wrapped) = %v, want %v", got, ManifestUnreadable)
	}
	if got := CodeOf(errors.New("plain")); got != InternalError {
		t.Errorf("CodeOf(plain) = %v, want %v", got, InternalError)
	}
	if !Is(wrapped, ManifestUnreadable) {
		t.Error("Is(wrapped, ManifestUnreadable) = false, want true")
	}
	if Is(nil, ManifestUnreadable) {
		t.Error("Is(nil, ...) = true, want false")
	}
}

func TestGetSuggestedFixes(t *testing.T) {
	fixes := GetSuggestedFixes(ToolchainUnavailable)
	if len(fixes) == 0 {
		t.Fatal("expected fixes for TOOLCHAIN_UNAVAILABLE")
	}
	if fixes[0].Command != "archdoc doctor" {
		t.Errorf("first fix command = %q, want %q", fixes[0].Command, "archdoc doctor")
	}

	if fixes := GetSuggestedFixes(InternalError); fixes != nil {
		t.Errorf("GetSuggestedFixes(InternalError) = %v, want nil", fixes)
	}
}

func TestWarningFromError(t *testing.T) {
	err := NewArchError(ManifestMalformed, "invalid XML", errors.New("line 3"))

	w := WarningFromError(err, "src/Web/Web.csproj")

	if w.Code != ManifestMalformed {
		t.Errorf("Code = %v, want %v", w.Code, ManifestMalformed)
	}
	if w.Message != "invalid XML: line 3" {
		t.Errorf("Message = %q, want %q", w.Message, "invalid XML: line 3")
	}
	if !strings.Contains(w.String(), "src/Web/Web.csproj") {
		t.Errorf("String() = %q, want subject included", w.String())
	}
}
