package chat

import "fmt"

// ValidationError 輸入驗證失敗.
// 欄位與原因會原樣回給呼叫方，不包含內部資訊.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// NewValidationError 創建驗證錯誤.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// DataAccessError 存儲層讀寫失敗.
type DataAccessError struct {
	Op  string
	Err error
}

func (e *DataAccessError) Error() string {
	return fmt.Sprintf("%s 失敗: %v", e.Op, e.Err)
}

func (e *DataAccessError) Unwrap() error {
	return e.Err
}

// SendFailedError 訊息發送失敗.
// 攜帶原始內容，讓呼叫方可以把草稿還給用戶重試.
type SendFailedError struct {
	Content string
	Err     error
}

func (e *SendFailedError) Error() string {
	return fmt.Sprintf("訊息發送失敗: %v", e.Err)
}

func (e *SendFailedError) Unwrap() error {
	return e.Err
}
