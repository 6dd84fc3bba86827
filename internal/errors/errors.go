package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode is a stable, machine-readable failure kind. Codes appear in
// JSON output and in the ledger, so existing values never change.
type ErrorCode string

const (
	// input problems; the run continues without the offending file
	ManifestUnreadable  ErrorCode = "MANIFEST_UNREADABLE"
	ManifestMalformed   ErrorCode = "MANIFEST_MALFORMED"
	ManifestUnsupported ErrorCode = "MANIFEST_UNSUPPORTED"

	// degraded results; the run still produces descriptions
	ResolutionFailed     ErrorCode = "RESOLUTION_FAILED"
	InsufficientModel    ErrorCode = "INSUFFICIENT_MODEL"
	ToolchainUnavailable ErrorCode = "TOOLCHAIN_UNAVAILABLE"
	RenderFailed         ErrorCode = "RENDER_FAILED"
	LargeArtifact        ErrorCode = "LARGE_ARTIFACT"
	MirrorFailed         ErrorCode = "MIRROR_FAILED"
	LedgerFailed         ErrorCode = "LEDGER_FAILED"

	// configuration and output
	PersistenceFailed ErrorCode = "PERSISTENCE_FAILED"
	ConfigInvalid     ErrorCode = "CONFIG_INVALID"
	InternalError     ErrorCode = "INTERNAL_ERROR"
)

type FixActionType string

const (
	RunCommand  FixActionType = "run-command"
	OpenDocs    FixActionType = "open-docs"
	InstallTool FixActionType = "install-tool"
)

type InstallMethod string

const (
	Brew   InstallMethod = "brew"
	Apt    InstallMethod = "apt"
	Manual InstallMethod = "manual"
)

// FixAction is a remedy shown by doctor and attached to ArchErrors.
type FixAction struct {
	Type        FixActionType   `json:"type"`
	Command     string          `json:"command,omitempty"`
	Safe        bool            `json:"safe,omitempty"`
	Description string          `json:"description,omitempty"`
	URL         string          `json:"url,omitempty"`
	Tool        string          `json:"tool,omitempty"`
	Methods     []InstallMethod `json:"methods,omitempty"`
}

// ArchError is an error with a stable code and suggested fixes.
type ArchError struct {
	Code           ErrorCode   `json:"code"`
	Message        string      `json:"message"`
	SuggestedFixes []FixAction `json:"suggestedFixes,omitempty"`
	cause          error
}

// NewArchError creates a new ArchError with the default fixes for its code
func NewArchError(code ErrorCode, message string, cause error) *ArchError {
	return &ArchError{
		Code:           code,
		Message:        message,
		cause:          cause,
		SuggestedFixes: GetSuggestedFixes(code),
	}
}

func (e *ArchError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *ArchError) Unwrap() error {
	return e.cause
}

// CodeOf returns the code of the first ArchError in err's chain,
// or InternalError when there is none.
func CodeOf(err error) ErrorCode {
	var archErr *ArchError
	if stderrors.As(err, &archErr) {
		return archErr.Code
	}
	return InternalError
}

// Is reports whether err carries the given code.
func Is(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

// ErrorActions are the default fixes per code. Codes without an entry get none.
var ErrorActions = map[ErrorCode][]FixAction{
	ToolchainUnavailable: {
		{
			Type:        RunCommand,
			Command:     "archdoc doctor",
			Safe:        true,
			Description: "Check Java and PlantUML availability",
		},
		{
			Type:    InstallTool,
			Tool:    "java",
			Methods: []InstallMethod{Brew, Apt, Manual},
		},
	},
	ResolutionFailed: {
		{
			Type:        RunCommand,
			Command:     "archdoc generate path/to/App.sln",
			Safe:        true,
			Description: "Point archdoc at a solution file or a directory containing project files",
		},
	},
	PersistenceFailed: {
		{
			Type:        RunCommand,
			Command:     "archdoc generate --out <writable-dir>",
			Safe:        true,
			Description: "Choose an output directory that is writable",
		},
	},
	ConfigInvalid: {
		{
			Type:        RunCommand,
			Command:     "archdoc init --force",
			Safe:        false,
			Description: "Regenerate the default configuration",
		},
	},
}

func GetSuggestedFixes(code ErrorCode) []FixAction {
	if fixes, ok := ErrorActions[code]; ok {
		return fixes
	}
	return nil
}
