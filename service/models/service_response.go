package models

// ServiceResponse is the envelope of every json endpoint. Data is null when Error is set,
// Error is left out of successful responses.
type ServiceResponse[T any] struct {
	Data  *T     `json:"data"`
	Error string `json:"error,omitempty"`
}

func GetServiceResponseOk[T any](data *T) ServiceResponse[T] {
	return ServiceResponse[T]{Data: data}
}

// GetServiceResponseError carries a message safe to show a client, never a raw upstream error
func GetServiceResponseError(errorMessage string) ServiceResponse[any] {
	return ServiceResponse[any]{Error: errorMessage}
}
