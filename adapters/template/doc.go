// Package doctemplate renders school documents to HTML with html/template.
//
// The embedded layout places the document inside a single root element
// (id "document-root") sized to one A4 page. Landscape dual layouts repeat the
// content twice side by side with the descriptor's copy labels. Every schema
// field is emitted with a data-field attribute; missing values render as empty
// placeholders carrying the is-empty class.
//
// Decorative elements (logo, watermark, QR box, signature block) are only
// emitted when their descriptor toggle is on. Images pass through an
// docgen.AssetResolver; undecodable images fall back to a glyph and a render
// warning. Rich text is sanitized with the bluemonday UGC policy.
package doctemplate
