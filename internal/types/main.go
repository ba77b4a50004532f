// Package apiResponses describes the response envelopes for the generated
// API documentation. Handlers never construct these; gecho writes the same
// shape.
package apiResponses

type BaseBase struct {
	Status    int    `example:"200"`
	Success   bool   `example:"true"`
	Message   string `example:"Ok"`
	Timestamp string `example:"2026-01-12T21:52:50.253429709+01:00" format:"date-time"`
}

type BaseResponse struct {
	BaseBase
	Data any
}

type BaseError struct {
	BaseBase
}

type BadRequestError struct {
	BaseBase
	Status  int    `default:"400"`
	Success bool   `default:"false"`
	Message string `example:"no_active_session"`
}

type ForbiddenError struct {
	BaseBase
	Status  int    `default:"403"`
	Success bool   `default:"false"`
	Message string `example:"teacher_reauthentication_required"`
}

type NotFoundError struct {
	BaseBase
	Status  int    `default:"404"`
	Success bool   `default:"false"`
	Message string `default:"Not Found"`
}

type MethodNotAllowedError struct {
	BaseBase
	Status  int    `default:"405"`
	Success bool   `default:"false"`
	Message string `default:"Method Not Allowed"`
}

type InternalServerError struct {
	BaseBase
	Status  int    `default:"500"`
	Success bool   `default:"false"`
	Message string `default:"Internal Server Error"`
}

type ServiceUnavailableError struct {
	BaseBase
	Status  int    `default:"503"`
	Success bool   `default:"false"`
	Message string `example:"recognition_unavailable"`
}
