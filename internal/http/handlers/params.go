package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// idParam reads a path parameter as a positive base-10 int64. Anything
// else, including trailing garbage like "12abc", is rejected with 400.
func idParam(ctx *gin.Context, name string) (int64, bool) {
	raw := ctx.Param(name)

	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		RespondError(ctx, http.StatusBadRequest, "invalid_id", "Invalid "+name, gin.H{"param": name, "value": raw})
		return 0, false
	}

	return id, true
}
