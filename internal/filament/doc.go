// Package filament keeps the spool catalogue and the print profile list.
//
// Filaments are identified by an fcid. Saving a filament without one assigns
// a fresh UUID; saving with a known fcid replaces that record in place. The
// collection is stored as one JSON array and rewritten whole on each change.
//
// Older catalogues used German keys (druckprofil, farbe, hersteller, preis,
// tempMin, tempMax). They are still read; writes always use the English keys.
package filament
