// internal/handlers/common.go
package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/storelink/pos-backend/internal/utils"
)

// storeScope pulls the authenticated store id out of the request context.
// Writes the 401 itself so call sites can just return on !ok.
func storeScope(c *gin.Context) (uuid.UUID, bool) {
	storeIDStr, ok := utils.GetStoreIDFromContext(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return uuid.Nil, false
	}
	storeID, err := uuid.Parse(storeIDStr)
	if err != nil {
		utils.UnauthorizedResponse(c, "")
		return uuid.Nil, false
	}
	return storeID, true
}

// pathID parses a uuid path parameter, answering 400 on garbage.
func pathID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		utils.BadRequestResponse(c, "invalid "+name, nil)
		return uuid.Nil, false
	}
	return id, true
}
