package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/torchbox-forks/wagtail-transfer/pkg/httputil"
	"github.com/torchbox-forks/wagtail-transfer/pkg/metrics"
	"go.uber.org/zap"
)

// BadRequestError is a client error reported as a 400 with its message.
type BadRequestError struct {
	Msg string
}

func (e *BadRequestError) Error() string { return e.Msg }

func badRequestf(format string, args ...any) error {
	return &BadRequestError{Msg: fmt.Sprintf(format, args...)}
}

// NotFoundError is reported as a 404 with its message.
type NotFoundError struct {
	Msg string
}

func (e *NotFoundError) Error() string { return e.Msg }

var errNotFound = &NotFoundError{Msg: "not found"}

// writeError maps an error to the wire: client errors keep their message,
// anything else is a logged 500.
func writeError(w http.ResponseWriter, err error, logger *zap.Logger) {
	var badReq *BadRequestError
	if errors.As(err, &badReq) {
		httputil.Message(w, http.StatusBadRequest, badReq.Msg)
		return
	}
	var notFound *NotFoundError
	if errors.As(err, &notFound) {
		httputil.Message(w, http.StatusNotFound, notFound.Msg)
		return
	}
	metrics.InternalErrors.Inc()
	if logger != nil {
		logger.Error("request failed", zap.Error(err))
	}
	httputil.Message(w, http.StatusInternalServerError, "internal server error")
}
