// 版权所有 2026 Prism Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 graph 实现查询管线：意图路由、检索、相关性评分、重排、
落地生成与可选的幻觉自检，按单向无环的节点序列执行。

# 管线拓扑

	route_intent ─→ respond_directly ─→ end
	      │
	      └─→ retrieve ─→ grade ─→ rerank ─→ generate ─→ end

State 在节点间原地传递，会话历史由 Checkpointer 在管线前后装载与保存。

# 错误哲学

节点内的 LLM 失败按保守默认值就地恢复（意图=general、评分=relevant/0.5、
幻觉=uncertain、生成=固定致歉语），不终止管线；只有管线级失败才上抛，
由 service 层触发熔断与降级。
*/
package graph
