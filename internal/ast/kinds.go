package ast

// Node kinds of the tree-sitter Python grammar used by the analyzer.
const (
	KindModule       = "module"
	KindComment      = "comment"
	KindIdentifier   = "identifier"
	KindBlock        = "block"
	KindDecorated    = "decorated_definition"
	KindFunctionDef  = "function_definition"
	KindClassDef     = "class_definition"
	KindLambda       = "lambda"
	KindParameters   = "parameters"
	KindLambdaParams = "lambda_parameters"

	KindDefaultParameter      = "default_parameter"
	KindTypedParameter        = "typed_parameter"
	KindTypedDefaultParameter = "typed_default_parameter"
	KindListSplatPattern      = "list_splat_pattern"
	KindDictSplatPattern      = "dictionary_splat_pattern"
	KindListSplat             = "list_splat"

	KindExpressionStatement = "expression_statement"
	KindAssignment          = "assignment"
	KindAugmentedAssignment = "augmented_assignment"
	KindNamedExpression     = "named_expression"
	KindPatternList         = "pattern_list"
	KindTuplePattern        = "tuple_pattern"
	KindListPattern         = "list_pattern"
	KindExpressionList      = "expression_list"

	KindImport         = "import_statement"
	KindImportFrom     = "import_from_statement"
	KindFutureImport   = "future_import_statement"
	KindAliasedImport  = "aliased_import"
	KindDottedName     = "dotted_name"
	KindRelativeImport = "relative_import"
	KindImportPrefix   = "import_prefix"
	KindWildcardImport = "wildcard_import"

	KindGlobal   = "global_statement"
	KindNonlocal = "nonlocal_statement"

	KindIf        = "if_statement"
	KindElif      = "elif_clause"
	KindElse      = "else_clause"
	KindFor       = "for_statement"
	KindWhile     = "while_statement"
	KindTry       = "try_statement"
	KindExcept    = "except_clause"
	KindFinally   = "finally_clause"
	KindWith      = "with_statement"
	KindWithItem  = "with_item"
	KindMatch     = "match_statement"
	KindCase      = "case_clause"
	KindAsPattern = "as_pattern"
	KindAsTarget  = "as_pattern_target"

	KindListComprehension       = "list_comprehension"
	KindSetComprehension        = "set_comprehension"
	KindDictionaryComprehension = "dictionary_comprehension"
	KindGeneratorExpression     = "generator_expression"
	KindForInClause             = "for_in_clause"
	KindIfClause                = "if_clause"

	KindCall         = "call"
	KindAttribute    = "attribute"
	KindSubscript    = "subscript"
	KindKeywordArg   = "keyword_argument"
	KindArgumentList = "argument_list"
	KindPair         = "pair"
	KindAwait        = "await"

	KindBinaryOperator        = "binary_operator"
	KindUnaryOperator         = "unary_operator"
	KindComparisonOperator    = "comparison_operator"
	KindNotOperator           = "not_operator"
	KindBooleanOperator       = "boolean_operator"
	KindConditionalExpression = "conditional_expression"

	KindInteger            = "integer"
	KindFloat              = "float"
	KindString             = "string"
	KindConcatenatedString = "concatenated_string"
	KindTrue               = "true"
	KindFalse              = "false"
	KindNone               = "none"
	KindList               = "list"
	KindTuple              = "tuple"
	KindDictionary         = "dictionary"
	KindSet                = "set"
	KindParenthesized      = "parenthesized_expression"
	KindType               = "type"
	KindGenericType        = "generic_type"
	KindTypeParameter      = "type_parameter"
	KindUnionType          = "union_type"
	KindMemberType         = "member_type"
	KindEllipsis           = "ellipsis"
)

// IsScope reports whether nodes of kind introduce a new scope.
func IsScope(kind string) bool {
	switch kind {
	case KindModule, KindFunctionDef, KindClassDef, KindLambda,
		KindListComprehension, KindSetComprehension,
		KindDictionaryComprehension, KindGeneratorExpression:
		return true
	}
	return false
}
