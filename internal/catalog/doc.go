// Package catalog provides the product catalog to the bot.
//
// Products come from three places, in order of preference:
//
//  1. the catalog_items table of the store
//  2. a CUE catalog file (business.catalog_file), validated against an
//     embedded schema
//  3. the built-in Seed
//
// Fallback provides this chain: a store error or an empty table degrades
// to the next source instead of failing the conversation.
package catalog
