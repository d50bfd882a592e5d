package settlement

import (
	"github.com/gin-gonic/gin"
	"github.com/stellarion/auction-api/pkg/response"
)

// GinHandlers contains HTTP handlers for settlement endpoints
type GinHandlers struct {
	processor *Processor
}

func NewGinHandlers(processor *Processor) *GinHandlers {
	return &GinHandlers{
		processor: processor,
	}
}

// SweepHandler handles POST requests to run an expiration sweep pass
// immediately. Requires internal authentication. The sweep is idempotent,
// so triggering it alongside the background loop is harmless.
func (h *GinHandlers) SweepHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		settled, err := h.processor.SweepOnce()
		if err != nil {
			response.InternalError(c, err.Error())
			return
		}
		response.Success(c, gin.H{"settled": settled})
	}
}
