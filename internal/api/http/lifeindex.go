package httpapi

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/eojeboda/internal/weather"
	"github.com/i474232898/eojeboda/internal/weather/providers"
)

// LifeIndexSource reports the living weather indices for a location or an
// explicit area code.
type LifeIndexSource interface {
	Report(ctx context.Context, loc weather.Location, areaNo string) (providers.LifeIndexReport, error)
}

type lifeIndexQuery struct {
	AreaNo string `validate:"omitempty,numeric,len=10"`
}

type lifeIndexHandlers struct {
	src LifeIndexSource
}

// report serves GET /api/v1/life-index?lat=&lon= or ?areaNo=.
func (h *lifeIndexHandlers) report(c *fiber.Ctx) error {
	q := lifeIndexQuery{AreaNo: c.Query("areaNo")}
	if err := validate.Struct(q); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	var loc weather.Location
	if q.AreaNo == "" {
		var err error
		if loc, err = parseLocationQuery(c); err != nil {
			return err
		}
	}
	report, err := h.src.Report(c.UserContext(), loc, q.AreaNo)
	if err != nil {
		return err
	}
	return c.JSON(report)
}
