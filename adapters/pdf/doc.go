// Package docpdf rasterizes rendered document previews and prints them to PDF
// with a shared headless Chromium instance.
//
// Capturer screenshots the preview root at a device scale for the raster
// encoder. PrintEncoder and WKHTMLTOPDFEncoder produce vector PDFs from the
// same preview HTML when selectable text is preferred.
package docpdf
