package engine

import (
	"context"
	"fmt"

	"github.com/hupe1980/roundtable/core"
)

// CallbackType defines the lifecycle points where callbacks run.
//
// Callbacks execute synchronously on the controller loop. A BeforeGenerate
// callback that returns an error cancels the turn; the error is reported as a
// generation failure. Errors from every other callback type are logged and
// otherwise ignored.
type CallbackType string

const (
	// CallbackBeforeGenerate runs before a bot turn is sent to the generator.
	CallbackBeforeGenerate CallbackType = "before_generate"

	// CallbackAfterGenerate runs after a generated message was appended.
	CallbackAfterGenerate CallbackType = "after_generate"

	// CallbackOnFailure runs for every reported recoverable failure.
	CallbackOnFailure CallbackType = "on_failure"

	// CallbackOnSessionChange runs after Start or Resume installed a session.
	CallbackOnSessionChange CallbackType = "on_session_change"
)

// CallbackContext carries what a callback may inspect.
type CallbackContext struct {
	CallbackType CallbackType

	SessionID int64
	Topic     string

	// Bot is set for generation callbacks.
	Bot *core.Bot

	// Message is set for CallbackAfterGenerate.
	Message *core.Message

	// Err is set for CallbackOnFailure.
	Err error

	Metadata map[string]any
}

// Callback is a hook executed at a specific lifecycle point.
type Callback interface {
	Type() CallbackType
	Execute(ctx context.Context, callbackCtx *CallbackContext) error
}

// FunctionCallback adapts a function to the Callback interface.
type FunctionCallback struct {
	callbackType CallbackType
	fn           func(ctx context.Context, callbackCtx *CallbackContext) error
}

// NewFunctionCallback creates a callback of the given type.
func NewFunctionCallback(
	callbackType CallbackType,
	fn func(ctx context.Context, callbackCtx *CallbackContext) error,
) *FunctionCallback {
	return &FunctionCallback{
		callbackType: callbackType,
		fn:           fn,
	}
}

// Type implements Callback.
func (c *FunctionCallback) Type() CallbackType {
	return c.callbackType
}

// Execute implements Callback.
func (c *FunctionCallback) Execute(ctx context.Context, callbackCtx *CallbackContext) error {
	return c.fn(ctx, callbackCtx)
}

// CallbackManager groups callbacks by type. It is not safe for concurrent
// registration; register everything before the controller runs.
type CallbackManager struct {
	callbacks map[CallbackType][]Callback
}

// NewCallbackManager creates an empty manager.
func NewCallbackManager() *CallbackManager {
	return &CallbackManager{
		callbacks: make(map[CallbackType][]Callback),
	}
}

// RegisterCallback adds callback under its type.
func (cm *CallbackManager) RegisterCallback(callback Callback) {
	callbackType := callback.Type()
	cm.callbacks[callbackType] = append(cm.callbacks[callbackType], callback)
}

// ExecuteCallbacks runs the callbacks of one type in registration order and
// stops at the first error.
func (cm *CallbackManager) ExecuteCallbacks(
	ctx context.Context,
	callbackType CallbackType,
	callbackCtx *CallbackContext,
) error {
	if cm == nil {
		return nil
	}
	callbacks, exists := cm.callbacks[callbackType]
	if !exists {
		return nil
	}

	callbackCtx.CallbackType = callbackType
	for _, callback := range callbacks {
		if err := callback.Execute(ctx, callbackCtx); err != nil {
			return err
		}
	}

	return nil
}

// LoggingCallback writes a one-line trace for its callback type.
type LoggingCallback struct {
	callbackType CallbackType
	logger       func(message string)
}

// NewLoggingCallback creates a tracing callback.
func NewLoggingCallback(callbackType CallbackType, logger func(message string)) *LoggingCallback {
	return &LoggingCallback{
		callbackType: callbackType,
		logger:       logger,
	}
}

// Type implements Callback.
func (c *LoggingCallback) Type() CallbackType {
	return c.callbackType
}

// Execute implements Callback.
func (c *LoggingCallback) Execute(_ context.Context, callbackCtx *CallbackContext) error {
	if c.logger == nil {
		return nil
	}
	speaker := ""
	if callbackCtx.Bot != nil {
		speaker = callbackCtx.Bot.Name
	}
	c.logger(fmt.Sprintf("[%s] session: %d, speaker: %s, err: %v",
		c.callbackType, callbackCtx.SessionID, speaker, callbackCtx.Err))
	return nil
}

// TurnBudgetCallback refuses generation once a fixed number of bot turns ran
// in the controller's lifetime. Useful to cap spend in unattended runs.
type TurnBudgetCallback struct {
	limiter *core.TurnLimiter
}

// NewTurnBudgetCallback creates a BeforeGenerate callback allowing max turns.
func NewTurnBudgetCallback(max int) *TurnBudgetCallback {
	return &TurnBudgetCallback{limiter: core.NewTurnLimiter(max)}
}

// Type implements Callback.
func (c *TurnBudgetCallback) Type() CallbackType {
	return CallbackBeforeGenerate
}

// Execute implements Callback.
func (c *TurnBudgetCallback) Execute(context.Context, *CallbackContext) error {
	return c.limiter.Increment()
}
