// Package scan discovers plugin files.
//
// A Scanner turns directories and extended glob patterns into the list of
// candidate archive files, ordered the way the game loads them. Patterns
// follow doublestar syntax with a few shorthands:
//
//	dir/                   everything below dir
//	group:name             the sc4pac package group.name in any numbered folder
//	{a,b}:name             the same for several groups
//	group:name/*.txt       files inside the package folder
//	/abs/path              a file or directory given directly
//
// Directory style patterns only yield files with one of the scanner's
// extensions. Patterns naming a file or a file glob are taken literally.
package scan
