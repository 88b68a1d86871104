package errno

// Errno defines the error code logic
type Errno struct {
	Code    int
	Message string
}

func (e Errno) Error() string {
	return e.Message
}

// Decode tries to convert an error to Errno
func Decode(err error) (int, string) {
	if err == nil {
		return OK.Code, OK.Message
	}

	switch typed := err.(type) {
	case *Errno:
		return typed.Code, typed.Message
	case Errno:
		return typed.Code, typed.Message
	default:
		return InternalServerError.Code, err.Error()
	}
}

// Common Errors
var (
	OK                  = Errno{Code: 0, Message: "Success"}
	InternalServerError = Errno{Code: 10001, Message: "Internal server error"}
	ErrBind             = Errno{Code: 10002, Message: "Error occurred while binding the request body to the struct"}
	ErrUnauthorized     = Errno{Code: 10003, Message: "Missing or invalid user identity"}
	ErrDatabase         = Errno{Code: 10004, Message: "Database error"}
)

// Business Errors (20000+)
var (
	ErrUserNotFound       = Errno{Code: 20101, Message: "User not found"}
	ErrPlanNotFound       = Errno{Code: 20102, Message: "Membership plan not found"}
	ErrPaymentNotFound    = Errno{Code: 20201, Message: "Payment not found"}
	ErrPaymentForbidden   = Errno{Code: 20202, Message: "Payment belongs to another user"}
	ErrLifetimeDowngrade  = Errno{Code: 20301, Message: "Lifetime membership cannot be downgraded"}
	ErrMembershipNotFound = Errno{Code: 20302, Message: "Membership not found"}
	ErrChainUnreachable   = Errno{Code: 20401, Message: "Blockchain RPC unreachable"}
)
