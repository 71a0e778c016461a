// Package compiler turns asset declarations into asset specs.
//
// Declarations come from CUE catalogs:
//
//	assets: {
//	    A: {policy: "eager"}
//	    B: {
//	        deps: ["A"]
//	        policy: "eager"
//	        partitions: daily: "2023-01-01"
//	    }
//	}
//
// or from the inline assets list of a scenario script, which decodes into
// the same AssetDecl.
package compiler
