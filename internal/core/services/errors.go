package services

import "errors"

// Task errors
var (
	ErrTaskNotFound = errors.New("task: not found")
	ErrTaskTerminal = errors.New("task: already finished")
)

// Preview errors
var (
	ErrPreviewClosed      = errors.New("preview: session closed")
	ErrPreviewNotOpen     = errors.New("preview: no open preview for workspace")
	ErrPreviewUnknownTool = errors.New("preview: unknown tool")
)

// Workspace errors
var (
	ErrWorkspaceInvalid = errors.New("workspace: invalid id")
)
