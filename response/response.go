// Package response renders an Outcome into the status, content type and body
// sent to the client.
package response

import (
	"fmt"
	"html"
	"net/http"

	"github.com/dormoron/gimme"
	"github.com/dormoron/gimme/guard"
)

const (
	ContentTypeHTML = "text/html; charset=utf-8"

	// FailureMessage is the only thing a client learns about a failure.
	FailureMessage = "Gimme integers!"
)

// Response is built once per request and never modified afterwards.
type Response struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// Write stages r on ctx. The server flushes it after the chain returns.
func (r Response) Write(ctx *gimme.Context) {
	ctx.Header("Content-Type", r.ContentType)
	ctx.RespStatusCode = r.StatusCode
	ctx.RespData = r.Body
}

// Builder renders outcomes. The zero value renders failures as an empty 400;
// use Default for the standard message.
type Builder struct {
	FailureStatus int
	FailureBody   []byte
}

func Default() Builder {
	return Builder{
		FailureStatus: http.StatusBadRequest,
		FailureBody:   []byte(FailureMessage),
	}
}

// Build is total over Outcome. A Success renders its value, HTML escaped, with
// status 200. A Failure renders the fixed failure body and nothing from the
// diagnostic.
func (b Builder) Build(o guard.Outcome) Response {
	if o.IsSuccess() {
		return Response{
			StatusCode:  http.StatusOK,
			ContentType: ContentTypeHTML,
			Body:        []byte(html.EscapeString(fmt.Sprint(o.Value()))),
		}
	}
	status := b.FailureStatus
	if status == 0 {
		status = http.StatusBadRequest
	}
	body := make([]byte, len(b.FailureBody))
	copy(body, b.FailureBody)
	return Response{
		StatusCode:  status,
		ContentType: ContentTypeHTML,
		Body:        body,
	}
}

// Build renders o with the Default builder.
func Build(o guard.Outcome) Response {
	return Default().Build(o)
}
