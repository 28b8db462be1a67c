// Package domain models the Kandilli Observatory earthquake bulletin.
//
// # Data Source
//
// The Kandilli Observatory and Earthquake Research Institute (KOERI) publishes
// its latest automatic solutions as a preformatted text block at
// http://www.koeri.boun.edu.tr/scripts/lst0.asp. The fetcher adapter strips the
// HTML and the fixed header block; this package only ever sees data rows.
//
// # Bulletin Row Format
//
// Rows are whitespace-aligned columns:
//
//	2024.01.15 10:23:45  40.1234   28.5678        7.2      -.-  1.8  -.-   MARMARA DENIZI   İlksel
//	^date      ^time     ^lat(N)   ^lon(E)        ^depth   ^MD  ^ML  ^Mw   ^location + solution quality
//
// Token positions are declared once in [layout]. The parser keeps the local
// magnitude (ML, token 6) and skips the duration (MD) and moment (Mw)
// magnitudes. Everything from token 8 onward is free text: the place name
// followed by the solution quality ("İlksel" or "REVIZE01 (...)"), kept
// verbatim and space-joined.
//
// Unknown values:
//
//	"-.-" is the Kandilli placeholder for an unreported magnitude. The parser
//	rewrites it to "0.0" before conversion.
//
// Row validity is all-or-nothing. A row shorter than [MinLineLength]
// characters, with fewer than [MinFields] tokens, or with a non-numeric
// required field yields a [*RejectError] and no record.
//
// # Anomaly Statistic
//
// [Analyze] computes the mean and the sample standard deviation (N-1) of the
// magnitude column and flags records whose Z-score is strictly greater than
// [ZScoreThreshold]. Datasets with fewer than two records or zero variance
// have no anomalies.
package domain
