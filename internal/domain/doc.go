// Package domain models the cell groups ("células") that visitors locate on
// the public map and that staff manage from the admin dashboard.
//
// # Data Source
//
// Rows come from a hosted relational backend whose shape drifted across
// several iterations of the dashboard. A row may carry any mix of:
//
//	flat leader fields        "lider" (legacy) or "lider1_nome"/"lider2_nome"
//	contact fields            "whatsapp1", "lider1_whatsapp", "lider2_whatsapp"
//	address fields            "logradouro", "numero", "complemento", "bairro", "cep"
//	legacy address            "endereco" as a single "street, number" string
//	coordinates               "lat"/"lon" as numbers or numeric strings
//	joined relations          "supervisores" {nome_1, nome_2, whatsapp_1, whatsapp_2}
//	                          "coordenadores" {nome, whatsapp}
//
// [Normalize] is the only place that knows about these shapes. Everything
// downstream sees [Group].
//
// # Conventions
//
// Coordinates:
//
//	Decimal degrees, WGS-84. A row without both components parseable as finite
//	numbers is never materialized; it is reported as a [SkippedRow] instead.
//
// Categories:
//
//	A closed table (teens, figueira, valentes). Category ids are lower-cased and
//	trimmed before lookup; unknown or empty ids fall back to the default
//	category because the upstream data is curated by hand and typo-prone.
//
// Schedule:
//
//	Free text such as "Quarta às 20h". Day filtering is a case-insensitive
//	substring match against tokens like "quarta" or "sábado", not a structured
//	weekday comparison.
//
// Contacts:
//
//	Phone numbers in wa.me form: digits only, with the 55 country code.
//	A contact action is offered only when the number has at least
//	[MinContactDigits] digits.
//
// # Pipeline
//
// [Apply] turns the normalized list plus the live filter state into the single
// ordered slice that both the list panel and the map markers render, see
// [Present]. Distances are great-circle kilometers from [DistanceKm].
package domain
