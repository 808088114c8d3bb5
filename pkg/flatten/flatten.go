// Package flatten projects nested order documents into flat rows, one per
// (order, item) pair.
package flatten

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Sternrassler/fever-order-sync/pkg/fields"
)

var flattenSkipped = promauto.NewCounter(prometheus.CounterOpts{
	Name: "fever_flatten_skipped_total",
	Help: "Orders skipped because they could not be flattened",
})

// ErrFlatten marks an order that could not be projected. It is never
// fatal: the order is skipped and the error is reported in Result.Errors.
var ErrFlatten = errors.New("flatten order")

// Result is the outcome of flattening a batch of orders.
type Result struct {
	Rows    []Row
	Skipped int
	Errors  []error
}

// Flatten projects orders into rows in input order. An order without items
// yields exactly one row with empty item fields.
func Flatten(orders []json.RawMessage) Result {
	res := Result{Rows: make([]Row, 0, len(orders))}
	for i, raw := range orders {
		rows, err := flattenOrder(raw)
		if err != nil {
			res.Skipped++
			res.Errors = append(res.Errors, fmt.Errorf("%w: order %d: %w", ErrFlatten, i, err))
			continue
		}
		res.Rows = append(res.Rows, rows...)
	}
	if res.Skipped > 0 {
		flattenSkipped.Add(float64(res.Skipped))
	}
	return res
}

func flattenOrder(raw json.RawMessage) ([]Row, error) {
	order, err := decodeObject(raw)
	if err != nil {
		return nil, err
	}

	items, err := orderItems(order)
	if err != nil {
		return nil, fmt.Errorf("order %q: %w", fields.Get(order, "id"), err)
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	bookingQuestions := fields.Compact(top["booking_questions"])

	rows := make([]Row, 0, len(items))
	for _, item := range items {
		rows = append(rows, project(order, item, bookingQuestions))
	}
	return rows, nil
}

// orderItems returns the items of an order. Absent, null and empty item
// lists yield a single empty item.
func orderItems(order fields.Object) ([]any, error) {
	v, ok := fields.Lookup(order, "order_items")
	if !ok || v == nil {
		return []any{fields.Object{}}, nil
	}
	items, isArray := v.([]any)
	if !isArray {
		return nil, fmt.Errorf("order_items is %s, want array", kind(v))
	}
	if len(items) == 0 {
		return []any{fields.Object{}}, nil
	}
	return items, nil
}

func decodeObject(raw json.RawMessage) (fields.Object, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("decode: trailing data after order")
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("order is %s, want object", kind(v))
	}
	return obj, nil
}

func kind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case bool:
		return "boolean"
	case json.Number, float64:
		return "number"
	default:
		return fmt.Sprintf("%T", v)
	}
}

func project(order fields.Object, item any, bookingQuestions string) Row {
	return Row{
		// order
		OrderID:             fields.Get(order, "id"),
		ParentOrderID:       fields.Get(order, "parent_order_id"),
		OrderCreatedDateUTC: fields.Get(order, "created_date_utc"),
		OrderUpdatedDateUTC: fields.Get(order, "updated_date_utc"),
		Surcharge:           fields.Get(order, "surcharge"),
		Currency:            fields.Get(order, "currency"),
		PurchaseChannel:     fields.Get(order, "purchase_channel"),
		PaymentMethod:       fields.Get(order, "payment_method"),
		BillingZipCode:      fields.Get(order, "billing_zip_code"),
		AssignedSeats:       fields.Get(order, "assigned_seats"),

		// buyer
		BuyerID:                  fields.Get(order, "buyer", "id"),
		BuyerEmail:               fields.Get(order, "buyer", "email"),
		BuyerFirstName:           fields.Get(order, "buyer", "first_name"),
		BuyerLastName:            fields.Get(order, "buyer", "last_name"),
		BuyerDateOfBirthday:      fields.Get(order, "buyer", "date_of_birthday"),
		BuyerLanguage:            fields.Get(order, "buyer", "language"),
		BuyerMarketingPreference: fields.Get(order, "buyer", "marketing_preference"),

		// purchase location
		PurchaseCity:        fields.Get(order, "purchase_location_source", "city_name"),
		PurchaseCountryCode: fields.Get(order, "purchase_location_source", "country_code"),
		PurchaseRegionCode:  fields.Get(order, "purchase_location_source", "region_code"),
		PurchasePostalCode:  fields.Get(order, "purchase_location_source", "postal_code"),
		PurchaseQuality:     fields.Get(order, "purchase_location_source", "quality"),

		// partner
		PartnerID:   fields.Get(order, "partner", "id"),
		PartnerName: fields.Get(order, "partner", "name"),

		// plan
		PlanID:   fields.Get(order, "plan", "id"),
		PlanName: fields.Get(order, "plan", "name"),

		// coupon
		CouponName: fields.Get(order, "coupon", "name"),
		CouponCode: fields.Get(order, "coupon", "code"),

		// business
		BusinessID:   fields.Get(order, "business", "id"),
		BusinessName: fields.Get(order, "business", "name"),

		// booking questions
		BookingQuestions: bookingQuestions,

		// item
		ItemID:                  fields.Get(item, "id"),
		ItemStatus:              fields.Get(item, "status"),
		ItemCreatedDateUTC:      fields.Get(item, "created_date_utc"),
		ItemModifiedDateUTC:     fields.Get(item, "modified_date_utc"),
		ItemPurchaseDateUTC:     fields.Get(item, "purchase_date_utc"),
		ItemCancellationDateUTC: fields.Get(item, "cancellation_date_utc"),
		ItemCancellationType:    fields.Get(item, "cancellation_type"),
		ItemDiscount:            fields.Get(item, "discount"),
		ItemSurcharge:           fields.Get(item, "surcharge"),
		ItemUnitaryPrice:        fields.Get(item, "unitary_price"),
		ItemIsInvite:            fields.Get(item, "is_invite"),
		ItemRatingValue:         fields.Get(item, "rating_value"),
		ItemRatingComment:       fields.Get(item, "rating_comment"),

		// owner
		OwnerID:                  fields.Get(item, "owner", "id"),
		OwnerEmail:               fields.Get(item, "owner", "email"),
		OwnerFirstName:           fields.Get(item, "owner", "first_name"),
		OwnerLastName:            fields.Get(item, "owner", "last_name"),
		OwnerDateOfBirthday:      fields.Get(item, "owner", "date_of_birthday"),
		OwnerLanguage:            fields.Get(item, "owner", "language"),
		OwnerMarketingPreference: fields.Get(item, "owner", "marketing_preference"),

		// plan code
		PlanCodeID:              fields.Get(item, "plan_code", "id"),
		PlanCodeBarcode:         fields.Get(item, "plan_code", "cd_barcode"),
		PlanCodeCreatedDateUTC:  fields.Get(item, "plan_code", "created_date_utc"),
		PlanCodeModifiedDateUTC: fields.Get(item, "plan_code", "modified_date_utc"),
		PlanCodeRedeemedDateUTC: fields.Get(item, "plan_code", "redeemed_date_utc"),
		PlanCodeIsCancelled:     fields.Get(item, "plan_code", "is_cancelled"),
		PlanCodeIsValidated:     fields.Get(item, "plan_code", "is_validated"),

		// session
		SessionID:                      fields.Get(item, "session", "id"),
		SessionName:                    fields.Get(item, "session", "name"),
		SessionStartDateUTC:            fields.Get(item, "session", "start_date_utc"),
		SessionEndDateUTC:              fields.Get(item, "session", "end_date_utc"),
		SessionFirstPurchasableDateUTC: fields.Get(item, "session", "first_purchasable_date_utc"),
		SessionIsAddon:                 fields.Get(item, "session", "is_addon"),
		SessionIsShopProduct:           fields.Get(item, "session", "is_shop_product"),
		SessionIsWaitList:              fields.Get(item, "session", "is_wait_list"),

		// venue
		VenueName:     fields.Get(item, "session", "venue", "name"),
		VenueCity:     fields.Get(item, "session", "venue", "city"),
		VenueCountry:  fields.Get(item, "session", "venue", "country"),
		VenueTimezone: fields.Get(item, "session", "venue", "timezone"),
	}
}
