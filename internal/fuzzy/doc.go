// Package fuzzy implements the rule language, membership curves, elementwise
// evaluation and defuzzification behind the DS scoring pass.
package fuzzy
