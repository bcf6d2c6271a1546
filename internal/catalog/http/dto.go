package cataloghttp

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/daoyee/daoyee-quote/internal/catalog"
)

var validate = validator.New()

// costItemDTO mirrors catalog.CostItem on the wire.
type costItemDTO struct {
	ID           string  `json:"id"`
	Name         string  `json:"name" validate:"required"`
	Amount       float64 `json:"amount" validate:"gte=0"`
	IsMaterial   bool    `json:"isMaterial"`
	MaterialType string  `json:"materialType" validate:"omitempty,oneof=new old eva"`
	Weight       float64 `json:"weight" validate:"gte=0"`
}

// productRequest is the create/update payload.
type productRequest struct {
	Code         string        `json:"code" validate:"required"`
	Name         string        `json:"name" validate:"required"`
	Category     string        `json:"category"`
	Description  string        `json:"description"`
	Image        string        `json:"image"`
	SizeRange    string        `json:"sizeRange"`
	CartonSpec   string        `json:"cartonSpec"`
	Colors       string        `json:"colors"`
	Costs        []costItemDTO `json:"costs" validate:"dive"`
	ProfitMargin float64       `json:"profitMargin" validate:"gte=0"`
	TaxRate      float64       `json:"taxRate" validate:"gte=0"`
}

// toProduct builds the domain product. A missing cost breakdown is seeded
// with the default lines; cost items without an id get one minted.
func (req productRequest) toProduct(id string) catalog.Product {
	p := catalog.Product{
		ID:           id,
		Code:         req.Code,
		Name:         req.Name,
		Category:     req.Category,
		Description:  req.Description,
		Image:        req.Image,
		SizeRange:    req.SizeRange,
		CartonSpec:   req.CartonSpec,
		Colors:       req.Colors,
		ProfitMargin: req.ProfitMargin,
		TaxRate:      req.TaxRate,
	}
	if len(req.Costs) == 0 {
		p.Costs = catalog.DefaultCosts()
		return p
	}
	p.Costs = make([]catalog.CostItem, 0, len(req.Costs))
	for _, c := range req.Costs {
		itemID := c.ID
		if itemID == "" {
			itemID = catalog.NewID()
		}
		p.Costs = append(p.Costs, catalog.CostItem{
			ID:           itemID,
			Name:         c.Name,
			Amount:       c.Amount,
			IsMaterial:   c.IsMaterial,
			MaterialType: catalog.MaterialType(c.MaterialType),
			Weight:       c.Weight,
		})
	}
	return p
}

// materialPricesRequest replaces the shared price table.
type materialPricesRequest struct {
	New float64 `json:"new" validate:"gte=0"`
	Old float64 `json:"old" validate:"gte=0"`
	EVA float64 `json:"eva" validate:"gte=0"`
}

// settingsRequest reconfigures remote sync.
type settingsRequest struct {
	RemoteDSN   string `json:"remoteDsn" validate:"required_if=SyncEnabled true"`
	RedisAddr   string `json:"redisAddr" validate:"required_if=SyncEnabled true"`
	SyncEnabled bool   `json:"syncEnabled"`
}

// quoteSheetRequest selects the products to render, in order.
type quoteSheetRequest struct {
	IDs []string `json:"ids" validate:"required,min=1"`
}

// productResponse decorates a product with its derived prices.
type productResponse struct {
	catalog.Product
	TotalCost    float64 `json:"totalCost"`
	ExWorksPrice float64 `json:"exWorksPrice"`
	PriceWithTax float64 `json:"priceWithTax"`
}

func validationDetail(err error) string {
	if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
		fe := errs[0]
		return fmt.Sprintf("field %s failed on %s", fe.Field(), fe.Tag())
	}
	return err.Error()
}
