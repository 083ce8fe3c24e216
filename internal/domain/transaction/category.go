package transaction

// MerchantCategory describes an ISO 18245 merchant category code.
type MerchantCategory struct {
	Code        int    `json:"code"`
	Description string `json:"description"`
}

// MerchantCategories maps merchant category codes to a short human readable
// description, used as a payee when the source supplied none.
// Key: MCC (e.g., 5411)
var MerchantCategories = map[int]MerchantCategory{
	4111: {Description: "Commuter Transport"},
	4121: {Description: "Taxicabs"},
	4131: {Description: "Bus Lines"},
	4511: {Description: "Airlines"},
	4784: {Description: "Tolls and Bridge Fees"},
	4812: {Description: "Telecommunication Equipment"},
	4814: {Description: "Telecommunication Services"},
	4816: {Description: "Computer Network Services"},
	4829: {Description: "Money Transfer"},
	4899: {Description: "Cable and Streaming Services"},
	4900: {Description: "Utilities"},
	5045: {Description: "Computers and Software"},
	5200: {Description: "Home Supply Warehouse"},
	5251: {Description: "Hardware Stores"},
	5261: {Description: "Garden Supply"},
	5311: {Description: "Department Stores"},
	5331: {Description: "Variety Stores"},
	5411: {Description: "Grocery Stores"},
	5422: {Description: "Meat Provisioners"},
	5441: {Description: "Candy and Confectionery"},
	5451: {Description: "Dairy Products"},
	5462: {Description: "Bakeries"},
	5499: {Description: "Food Stores"},
	5533: {Description: "Auto Parts"},
	5541: {Description: "Service Stations"},
	5542: {Description: "Fuel Dispenser"},
	5651: {Description: "Family Clothing"},
	5661: {Description: "Shoe Stores"},
	5691: {Description: "Clothing Stores"},
	5712: {Description: "Furniture"},
	5722: {Description: "Household Appliances"},
	5732: {Description: "Electronics"},
	5734: {Description: "Software Stores"},
	5735: {Description: "Record Stores"},
	5812: {Description: "Restaurants"},
	5813: {Description: "Bars"},
	5814: {Description: "Fast Food"},
	5815: {Description: "Digital Media"},
	5816: {Description: "Digital Games"},
	5817: {Description: "Digital Applications"},
	5818: {Description: "Digital Goods"},
	5912: {Description: "Pharmacies"},
	5921: {Description: "Liquor Stores"},
	5941: {Description: "Sporting Goods"},
	5942: {Description: "Book Stores"},
	5945: {Description: "Toy Stores"},
	5977: {Description: "Cosmetic Stores"},
	5992: {Description: "Florists"},
	5995: {Description: "Pet Shops"},
	5999: {Description: "Specialty Retail"},
	6010: {Description: "Cash Withdrawal"},
	6011: {Description: "ATM Cash Withdrawal"},
	6012: {Description: "Financial Institutions"},
	6300: {Description: "Insurance"},
	6538: {Description: "Card Funding"},
	7011: {Description: "Hotels"},
	7230: {Description: "Beauty Shops"},
	7298: {Description: "Health and Beauty Spas"},
	7372: {Description: "Computer Programming"},
	7399: {Description: "Business Services"},
	7512: {Description: "Car Rental"},
	7523: {Description: "Parking"},
	7832: {Description: "Cinemas"},
	7922: {Description: "Theatrical Producers"},
	7941: {Description: "Sports Clubs"},
	7997: {Description: "Clubs and Fitness"},
	7999: {Description: "Recreation Services"},
	8011: {Description: "Doctors"},
	8021: {Description: "Dentists"},
	8062: {Description: "Hospitals"},
	8099: {Description: "Medical Services"},
	8220: {Description: "Colleges and Universities"},
	8299: {Description: "Schools"},
	8398: {Description: "Charitable Organizations"},
	9311: {Description: "Tax Payments"},
	9399: {Description: "Government Services"},
	9402: {Description: "Postal Services"},
}

// MCCDescription returns the description for the given code, or an empty
// string when the code is absent (0) or unknown.
func MCCDescription(mcc int) string {
	if mcc == 0 {
		return ""
	}
	if c, ok := MerchantCategories[mcc]; ok {
		return c.Description
	}
	return ""
}
