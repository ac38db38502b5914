// Package clip stores interned clip items and resolves them into per
// primitive clip chain instances.
//
// A clip chain is a linked list of clip items. During the visibility pass
// the ChainStack accumulates the chains in scope, the Store reduces them
// against a primitive's local rect and records which clips still need to
// be rendered as a mask.
package clip
