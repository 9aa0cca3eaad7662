// Package embedded provides embedded static assets for the application.
package embedded

import (
	"embed"
)

// Files contains all files embedded in the Go binary:
// - data/sp500_constituents.csv - seed catalog of S&P 500 constituents
//   (symbol, name, GICS sector, date added) used to build the universe
//   database on first start
//
//go:embed data
var Files embed.FS

// ConstituentsCSV is the path of the universe seed file within Files.
const ConstituentsCSV = "data/sp500_constituents.csv"
