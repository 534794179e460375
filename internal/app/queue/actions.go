package queue

// Action kinds shared between the API layer (which enqueues while
// offline) and the daemon (which registers the replay handlers).
const (
	ActionCheckIn    = "checkin"
	ActionSpin       = "spin"
	ActionAddCoins   = "coins"
	ActionTask       = "task"
	ActionWithdrawal = "withdrawal"
)

// CheckInArgs replays a daily check-in.
type CheckInArgs struct {
	AccountID string `json:"account_id"`
}

// SpinArgs replays a wheel spin.
type SpinArgs struct {
	AccountID string `json:"account_id"`
}

// AddCoinsArgs replays a coin credit.
type AddCoinsArgs struct {
	AccountID   string `json:"account_id"`
	Amount      int64  `json:"amount"`
	Kind        string `json:"kind"`
	Description string `json:"description"`
}

// TaskArgs replays a task completion.
type TaskArgs struct {
	AccountID string `json:"account_id"`
	TaskID    string `json:"task_id"`
	Reward    int64  `json:"reward"`
}

// WithdrawalArgs replays a withdrawal request.
type WithdrawalArgs struct {
	AccountID     string  `json:"account_id"`
	Method        string  `json:"method"`
	AccountNumber string  `json:"account_number"`
	Amount        float64 `json:"amount"`
}
