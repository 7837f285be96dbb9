// Package meta is the runtime half of the typeinfo capability. Generated
// ShapeInfo methods return a Type built from the constructors in this
// package: a namespaced type identifier plus the declaration's shape.
//
// The package has no dependencies beyond errors and strconv so generated
// code importing it compiles in freestanding builds as well.
package meta
