/*

Process of compilation

Program Text ->
	parse ->
Abstract Syntax Tree (ast) ->
	dir ->
Addresses of every variable and parameter (dir) ->
	front ->
Quadruples, constant pools, function table (ir) ->
	obj ->
Object File (text or msgpack) ->
	vm ->
Program Output

*/
package compiler
