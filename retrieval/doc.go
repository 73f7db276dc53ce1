// 版权所有 2026 Prism Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 retrieval 实现混合检索：BM25 词法检索与向量语义检索通过加权 RRF
融合为单一排序，再经意图相关的优先级重排输出给生成阶段。

# 核心组件

  - Document：检索单元，以内容哈希作为融合与去重的身份。
  - BM25Index：进程内词法索引，按集合文档构建。
  - FuseRRF：加权 Reciprocal Rank Fusion，常数 c=60。
  - HybridRetriever：词法 + 语义双路检索与融合。
  - Expander：LLM 查询扩展，带长度与包含性守卫。
  - PriorityReorder：按意图的三级稳定重排。
  - Registry：按集合惰性初始化的检索器注册表。

# 检索流程

	expand → [BM25 top-k, vector top-k] → RRF fuse → priority reorder
*/
package retrieval
