package sqlassets

import _ "embed"

//go:embed schema/platform/companies.sql
var CompaniesSQL string

//go:embed schema/platform/backups.sql
var BackupsSQL string
