package domain

// CaptureObserver subscribes to a live recording-status source.
// Implementations: process scan, OBS websocket, or a combination.
// Callbacks arrive on the observer's own goroutine, never from inside Subscribe.
type CaptureObserver interface {
	// Subscribe starts delivering readings to callback.
	// Returns ErrSubscriptionUnavailable (possibly wrapped) when no source is available.
	Subscribe(callback func(isCapturing bool)) (ObserverHandle, error)

	// Unsubscribe stops delivery for the handle.
	Unsubscribe(handle ObserverHandle) error
}

// CaptureRefresher is optionally implemented by a CaptureObserver that can
// re-deliver its current reading on request (used after activation).
type CaptureRefresher interface {
	RequestRefresh(handle ObserverHandle)
}

// ActionSink executes action requests against platform primitives.
// Calls are best-effort: failures are logged by the sink, never returned.
// Re-applying the same value must be safe.
type ActionSink interface {
	// SetScreenshotBlocking enables or disables screenshot blocking.
	SetScreenshotBlocking(enabled bool)

	// SetBlurOverlay shows or hides the blur overlay.
	SetBlurOverlay(enabled bool)
}

// ProtectionController is the capture-protection state machine.
type ProtectionController interface {
	OnLaunch() error
	OnActivate() error
	OnResignActive() error
	OnTerminate() error
	OnCaptureStatusChanged(isCapturing bool) error

	// State returns the last derived protection state.
	State() ProtectionState

	// Snapshot returns the full controller state for status reporting.
	Snapshot() StatusSnapshot
}

// ProcessManager handles OS process lookups.
// Implementation: uses gopsutil for cross-platform support.
type ProcessManager interface {
	// FindByName returns PIDs of processes matching the pattern.
	FindByName(pattern string) ([]int, error)

	// NameOf returns the process name for a PID.
	NameOf(pid int) (string, error)

	// IsRunning checks if a PID exists and is running.
	IsRunning(pid int) bool

	// GetCurrentPID returns the current process PID.
	GetCurrentPID() int
}

// FocusProbe reports which application currently owns the foreground.
type FocusProbe interface {
	// FrontmostApp returns the frontmost application's name.
	FrontmostApp() (string, error)
}

// StatusStore persists the latest StatusSnapshot for the status command.
// Implementation: JSON file written atomically.
type StatusStore interface {
	// Save writes the snapshot.
	Save(snapshot StatusSnapshot) error

	// Load returns the stored snapshot, or nil if none exists.
	Load() (*StatusSnapshot, error)

	// Clear removes the stored snapshot.
	Clear() error

	// Path returns the backing file path (for tests).
	Path() string
}

// TransitionJournal is an append-only audit log of controller transitions.
// Implementation: SQLCipher encrypted database.
type TransitionJournal interface {
	// Append records a transition.
	Append(t Transition) error

	// Recent returns up to limit transitions, newest first.
	Recent(limit int) ([]Transition, error)

	// Close releases resources (e.g., database connection).
	Close() error
}

// KeyProvider abstracts the source of encryption keys.
type KeyProvider interface {
	// GetKey returns the encryption key bytes.
	GetKey() ([]byte, error)

	// StoreKey persists a new encryption key.
	StoreKey(key []byte) error

	// KeyExists checks if a key has been generated.
	KeyExists() bool
}
