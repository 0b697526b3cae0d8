// Package types defines the Workbook and Source interfaces, the standard table
// and column names, the reconciliation result types, configuration, and the
// error taxonomy shared by every formtrack package.
package types
