package dialect

func init() {
	Register(&Dialect{
		Name:            "mariadb",
		IDsStoredAsText: true,
		LikeOperator:    "like",
		ValueQuote:      "`",
	})
	Register(&Dialect{
		Name:            "postgres",
		IDsStoredAsText: false,
		LikeOperator:    "ilike",
		ValueQuote:      `"`,
	})
}
