package order

import "github.com/fjod/storefront/internal/domain"

// toOrder converts a remote record to the local shape. Missing expansions
// become zero values, so absent shipping details read as empty strings.
func toOrder(rec domain.OrderRecord) domain.Order {
	o := domain.Order{
		ID:        rec.ID,
		UserID:    rec.UserID,
		Total:     rec.Total,
		Status:    rec.Status,
		Customer:  rec.Customer,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
		Items:     make([]domain.OrderItem, 0, len(rec.Items)),
	}

	for _, it := range rec.Items {
		item := domain.OrderItem{
			ProductID: it.ProductID,
			Price:     it.Price,
			Quantity:  it.Quantity,
		}
		if it.Product != nil {
			item.ProductID = it.Product.ID
			item.Title = it.Product.Title
			item.ImageURL = it.Product.ImageURL
		}
		o.Items = append(o.Items, item)
	}

	if rec.Shipping != nil {
		o.ShippingDetails = domain.ShippingDetails{
			FirstName: rec.Shipping.FirstName,
			LastName:  rec.Shipping.LastName,
			Email:     rec.Shipping.Email,
			Phone:     rec.Shipping.Phone,
			Address:   rec.Shipping.Address,
			City:      rec.Shipping.City,
			State:     rec.Shipping.State,
			ZipCode:   rec.Shipping.ZipCode,
			Country:   rec.Shipping.Country,
			Notes:     rec.Shipping.Notes,
		}
	}
	return o
}

func toOrders(recs []domain.OrderRecord) []domain.Order {
	out := make([]domain.Order, 0, len(recs))
	for _, rec := range recs {
		out = append(out, toOrder(rec))
	}
	return out
}
