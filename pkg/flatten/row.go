package flatten

// Row is one flattened (order, item) pair. Every field is always set;
// missing source data is the empty string.
type Row struct {
	// Order
	OrderID             string `json:"order_id"`
	ParentOrderID       string `json:"parent_order_id"`
	OrderCreatedDateUTC string `json:"order_created_date_utc"`
	OrderUpdatedDateUTC string `json:"order_updated_date_utc"`
	Surcharge           string `json:"surcharge"`
	Currency            string `json:"currency"`
	PurchaseChannel     string `json:"purchase_channel"`
	PaymentMethod       string `json:"payment_method"`
	BillingZipCode      string `json:"billing_zip_code"`
	AssignedSeats       string `json:"assigned_seats"`

	// Buyer
	BuyerID                  string `json:"buyer_id"`
	BuyerEmail               string `json:"buyer_email"`
	BuyerFirstName           string `json:"buyer_first_name"`
	BuyerLastName            string `json:"buyer_last_name"`
	BuyerDateOfBirthday      string `json:"buyer_date_of_birthday"`
	BuyerLanguage            string `json:"buyer_language"`
	BuyerMarketingPreference string `json:"buyer_marketing_preference"`

	// Purchase location
	PurchaseCity        string `json:"purchase_city"`
	PurchaseCountryCode string `json:"purchase_country_code"`
	PurchaseRegionCode  string `json:"purchase_region_code"`
	PurchasePostalCode  string `json:"purchase_postal_code"`
	PurchaseQuality     string `json:"purchase_quality"`

	// Partner
	PartnerID   string `json:"partner_id"`
	PartnerName string `json:"partner_name"`

	// Plan
	PlanID   string `json:"plan_id"`
	PlanName string `json:"plan_name"`

	// Coupon
	CouponName string `json:"coupon_name"`
	CouponCode string `json:"coupon_code"`

	// Business
	BusinessID   string `json:"business_id"`
	BusinessName string `json:"business_name"`

	// Raw booking questions as compact JSON
	BookingQuestions string `json:"booking_questions"`

	// Item
	ItemID                  string `json:"item_id"`
	ItemStatus              string `json:"item_status"`
	ItemCreatedDateUTC      string `json:"item_created_date_utc"`
	ItemModifiedDateUTC     string `json:"item_modified_date_utc"`
	ItemPurchaseDateUTC     string `json:"item_purchase_date_utc"`
	ItemCancellationDateUTC string `json:"item_cancellation_date_utc"`
	ItemCancellationType    string `json:"item_cancellation_type"`
	ItemDiscount            string `json:"item_discount"`
	ItemSurcharge           string `json:"item_surcharge"`
	ItemUnitaryPrice        string `json:"item_unitary_price"`
	ItemIsInvite            string `json:"item_is_invite"`
	ItemRatingValue         string `json:"item_rating_value"`
	ItemRatingComment       string `json:"item_rating_comment"`

	// Owner
	OwnerID                  string `json:"owner_id"`
	OwnerEmail               string `json:"owner_email"`
	OwnerFirstName           string `json:"owner_first_name"`
	OwnerLastName            string `json:"owner_last_name"`
	OwnerDateOfBirthday      string `json:"owner_date_of_birthday"`
	OwnerLanguage            string `json:"owner_language"`
	OwnerMarketingPreference string `json:"owner_marketing_preference"`

	// Plan code
	PlanCodeID              string `json:"plan_code_id"`
	PlanCodeBarcode         string `json:"plan_code_barcode"`
	PlanCodeCreatedDateUTC  string `json:"plan_code_created_date_utc"`
	PlanCodeModifiedDateUTC string `json:"plan_code_modified_date_utc"`
	PlanCodeRedeemedDateUTC string `json:"plan_code_redeemed_date_utc"`
	PlanCodeIsCancelled     string `json:"plan_code_is_cancelled"`
	PlanCodeIsValidated     string `json:"plan_code_is_validated"`

	// Session
	SessionID                      string `json:"session_id"`
	SessionName                    string `json:"session_name"`
	SessionStartDateUTC            string `json:"session_start_date_utc"`
	SessionEndDateUTC              string `json:"session_end_date_utc"`
	SessionFirstPurchasableDateUTC string `json:"session_first_purchasable_date_utc"`
	SessionIsAddon                 string `json:"session_is_addon"`
	SessionIsShopProduct           string `json:"session_is_shop_product"`
	SessionIsWaitList              string `json:"session_is_wait_list"`

	// Venue
	VenueName     string `json:"venue_name"`
	VenueCity     string `json:"venue_city"`
	VenueCountry  string `json:"venue_country"`
	VenueTimezone string `json:"venue_timezone"`
}

// Columns lists the output column names in schema order.
var Columns = []string{
	"order_id", "parent_order_id", "order_created_date_utc",
	"order_updated_date_utc", "surcharge", "currency", "purchase_channel",
	"payment_method", "billing_zip_code", "assigned_seats", "buyer_id",
	"buyer_email", "buyer_first_name", "buyer_last_name",
	"buyer_date_of_birthday", "buyer_language", "buyer_marketing_preference",
	"purchase_city", "purchase_country_code", "purchase_region_code",
	"purchase_postal_code", "purchase_quality", "partner_id", "partner_name",
	"plan_id", "plan_name", "coupon_name", "coupon_code", "business_id",
	"business_name", "booking_questions", "item_id", "item_status",
	"item_created_date_utc", "item_modified_date_utc", "item_purchase_date_utc",
	"item_cancellation_date_utc", "item_cancellation_type", "item_discount",
	"item_surcharge", "item_unitary_price", "item_is_invite", "item_rating_value",
	"item_rating_comment", "owner_id", "owner_email", "owner_first_name",
	"owner_last_name", "owner_date_of_birthday", "owner_language",
	"owner_marketing_preference", "plan_code_id", "plan_code_barcode",
	"plan_code_created_date_utc", "plan_code_modified_date_utc",
	"plan_code_redeemed_date_utc", "plan_code_is_cancelled",
	"plan_code_is_validated", "session_id", "session_name",
	"session_start_date_utc", "session_end_date_utc",
	"session_first_purchasable_date_utc", "session_is_addon",
	"session_is_shop_product", "session_is_wait_list", "venue_name", "venue_city",
	"venue_country", "venue_timezone",
}

// Values returns the row's fields aligned with Columns.
func (r *Row) Values() []string {
	return []string{
		r.OrderID, r.ParentOrderID, r.OrderCreatedDateUTC, r.OrderUpdatedDateUTC,
		r.Surcharge, r.Currency, r.PurchaseChannel, r.PaymentMethod, r.BillingZipCode,
		r.AssignedSeats, r.BuyerID, r.BuyerEmail, r.BuyerFirstName, r.BuyerLastName,
		r.BuyerDateOfBirthday, r.BuyerLanguage, r.BuyerMarketingPreference,
		r.PurchaseCity, r.PurchaseCountryCode, r.PurchaseRegionCode,
		r.PurchasePostalCode, r.PurchaseQuality, r.PartnerID, r.PartnerName, r.PlanID,
		r.PlanName, r.CouponName, r.CouponCode, r.BusinessID, r.BusinessName,
		r.BookingQuestions, r.ItemID, r.ItemStatus, r.ItemCreatedDateUTC,
		r.ItemModifiedDateUTC, r.ItemPurchaseDateUTC, r.ItemCancellationDateUTC,
		r.ItemCancellationType, r.ItemDiscount, r.ItemSurcharge, r.ItemUnitaryPrice,
		r.ItemIsInvite, r.ItemRatingValue, r.ItemRatingComment, r.OwnerID, r.OwnerEmail,
		r.OwnerFirstName, r.OwnerLastName, r.OwnerDateOfBirthday, r.OwnerLanguage,
		r.OwnerMarketingPreference, r.PlanCodeID, r.PlanCodeBarcode,
		r.PlanCodeCreatedDateUTC, r.PlanCodeModifiedDateUTC, r.PlanCodeRedeemedDateUTC,
		r.PlanCodeIsCancelled, r.PlanCodeIsValidated, r.SessionID, r.SessionName,
		r.SessionStartDateUTC, r.SessionEndDateUTC, r.SessionFirstPurchasableDateUTC,
		r.SessionIsAddon, r.SessionIsShopProduct, r.SessionIsWaitList, r.VenueName,
		r.VenueCity, r.VenueCountry, r.VenueTimezone,
	}
}

var columnIndex = func() map[string]int {
	idx := make(map[string]int, len(Columns))
	for i, c := range Columns {
		idx[c] = i
	}
	return idx
}()

// Get returns the value of the named column and whether the column exists.
func (r *Row) Get(column string) (string, bool) {
	i, ok := columnIndex[column]
	if !ok {
		return "", false
	}
	return r.Values()[i], true
}

// Map returns the row keyed by column name.
func (r *Row) Map() map[string]string {
	values := r.Values()
	m := make(map[string]string, len(Columns))
	for i, c := range Columns {
		m[c] = values[i]
	}
	return m
}
