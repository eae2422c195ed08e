package schema

// Default returns the built-in financial statement schema. finYear,
// finSales and finProfit are critical: a sheet without them always
// goes to human review.
func Default() *Registry {
	r, err := NewRegistry([]FieldSpec{
		{Name: "finYear", Type: TypeYear, Critical: true,
			Aliases: []string{"exercice", "année fiscale", "fiscal year"}},
		{Name: "finSales", Type: TypeDecimal, Critical: true,
			Aliases: []string{"chiffre d'affaires", "CA", "ventes", "sales", "revenus", "revenue"}},
		{Name: "finProfit", Type: TypeDecimal, Critical: true,
			Aliases: []string{"résultat net", "bénéfice", "profit", "net profit", "net income"}},
		{Name: "finEquity", Type: TypeDecimal,
			Aliases: []string{"capitaux propres", "fonds propres", "equity", "shareholders equity"}},
		{Name: "finCapital", Type: TypeDecimal,
			Aliases: []string{"capital social", "capital", "share capital"}},
		{Name: "finBalanceSheet", Type: TypeDecimal,
			Aliases: []string{"total actif", "bilan", "balance sheet", "total assets", "actif total"}},
		{Name: "finAvailableFunds", Type: TypeDecimal,
			Aliases: []string{"trésorerie", "disponibilités", "available funds", "cash", "liquidités"}},
		{Name: "finOperationInc", Type: TypeDecimal,
			Aliases: []string{"résultat d'exploitation", "EBIT", "operating income", "résultat opérationnel"}},
		{Name: "finFinancialInc", Type: TypeDecimal,
			Aliases: []string{"résultat financier", "financial income", "résultat financier net"}},
		{Name: "finNonRecurring", Type: TypeDecimal,
			Aliases: []string{"résultat exceptionnel", "exceptional income", "non recurring", "éléments exceptionnels"}},
		{Name: "finSecurities", Type: TypeDecimal,
			Aliases: []string{"valeurs mobilières", "securities", "titres", "investments"}},
	})
	if err != nil {
		// The built-in schema is static; a construction error is a bug.
		panic(err)
	}
	return r
}
